// Command smoketest is a thin harness, not a product surface (§6): it
// mounts one session from a local bundle directory, runs a single prompt
// through it, and prints the response. It exists to exercise the wiring
// between bundle loading, module activation, and session execution end to
// end — the CLI itself is explicitly out of scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/amplifier-run/amplifier/bundle"
	"github.com/amplifier-run/amplifier/config"
	"github.com/amplifier-run/amplifier/contextmgr"
	"github.com/amplifier-run/amplifier/hooks"
	"github.com/amplifier-run/amplifier/llm"
	"github.com/amplifier-run/amplifier/llm/anthropic"
	"github.com/amplifier-run/amplifier/logger"
	"github.com/amplifier-run/amplifier/modactivate"
	"github.com/amplifier-run/amplifier/observability"
	"github.com/amplifier-run/amplifier/orchestrate"
	"github.com/amplifier-run/amplifier/registry"
	"github.com/amplifier-run/amplifier/runtime"
	"github.com/amplifier-run/amplifier/sourceresolve"
)

func main() {
	bundleDir := flag.String("bundle", ".", "path to a local bundle directory (bundle.md or bundle.yaml)")
	prompt := flag.String("prompt", "", "prompt to run through the session")
	logLevel := flag.String("log-level", "info", "debug, info, warn, or error")
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	logger.Init(level, os.Stderr, "text")
	log := logger.GetLogger()

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "smoketest: -prompt is required")
		os.Exit(2)
	}

	if err := run(*bundleDir, *prompt, log); err != nil {
		log.Error("smoketest failed", "error", err)
		os.Exit(1)
	}
}

func run(bundleDir, prompt string, log *slog.Logger) error {
	ctx := context.Background()

	if err := config.LoadEnvFiles(); err != nil {
		log.Warn("no .env file loaded", "error", err)
	}

	home, err := config.AmplifierHome()
	if err != nil {
		return fmt.Errorf("resolve amplifier home: %w", err)
	}

	loader := &bundle.Loader{}
	b, err := loader.LoadFromPath(bundleDir)
	if err != nil {
		return fmt.Errorf("load bundle: %w", err)
	}

	resolver := sourceresolve.NewResolver(
		filepath.Join(home, "cache", "sources"),
		sourceresolve.FileHandler{},
		sourceresolve.GitHandler{},
		sourceresolve.HTTPHandler{},
		sourceresolve.ZipHandler{},
	)
	activator := modactivate.New(resolver, nil, filepath.Join(home, "cache"))

	prepared, err := bundle.Prepare(ctx, b, activator)
	if err != nil {
		return fmt.Errorf("prepare bundle: %w", err)
	}
	defer func() {
		if err := activator.Finalize(); err != nil {
			log.Warn("activator finalize failed", "error", err)
		}
	}()

	metrics := observability.NewMetrics("amplifier")
	hookRegistry := hooks.New()
	hookRegistry.Register("approval:denied", metrics.DeniedHookHandler(), 0, "metrics.denied")

	providers, priority := mountProviders(prepared.Providers, metrics, log)
	if len(providers) == 0 {
		return fmt.Errorf("bundle %s mounts no provider this harness knows how to build (only \"anthropic\" is wired)", b.Name)
	}

	tools := map[string]any{}
	for _, t := range prepared.Tools {
		log.Warn("skipping tool: no in-process constructor wired for it in this harness", "tool", t.Module)
	}

	cm, err := contextmgr.NewSimple(contextmgr.Config{Hooks: hookRegistry})
	if err != nil {
		return fmt.Errorf("build context manager: %w", err)
	}

	orchestratorName, contextName := sessionModuleNames(b.Session)
	sessionCfg := runtime.Config{Orchestrator: orchestratorName, Context: contextName}

	sess, err := runtime.NewSession(ctx, sessionCfg, "", hookRegistry)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	if err := sess.Initialize(ctx, runtime.Mounts{
		Orchestrator:   orchestrate.NewBasic(priority...),
		ContextManager: cm,
		Providers:      providers,
		Tools:          tools,
		Instruction:    prepared.Plan.Instruction,
	}); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	defer func() {
		if err := sess.Cleanup(ctx); err != nil {
			log.Warn("session cleanup failed", "error", err)
		}
	}()

	response, err := sess.Execute(ctx, prompt)
	if err != nil {
		return fmt.Errorf("execute prompt: %w", err)
	}

	fmt.Println(response)
	return nil
}

// mountProviders builds the live llm.Provider instances for every
// activated provider entry this harness has a constructor for, wrapping
// each provider's emitter in an EmitterAdapter so retry/repair counters
// are collected for free. Entries naming an unknown provider module are
// logged and skipped rather than treated as fatal, matching
// activate_all()'s per-module tolerance for partial failure.
func mountProviders(entries []bundle.ActivatedModule, metrics *observability.Metrics, log *slog.Logger) (map[string]any, []string) {
	live := registry.NewBaseRegistry[llm.Provider]()
	priority := make([]string, 0, len(entries))

	for _, e := range entries {
		switch e.Module {
		case "anthropic":
			model, _ := e.Config["model"].(string)
			p, err := anthropic.New(anthropic.Config{
				APIKey:  config.GetProviderAPIKey("anthropic"),
				Model:   model,
				Emitter: &observability.EmitterAdapter{Metrics: metrics},
			})
			if err != nil {
				log.Warn("skipping provider: construction failed", "provider", e.Module, "error", err)
				continue
			}
			if err := live.Register(e.Module, p); err != nil {
				log.Warn("skipping provider: duplicate module id", "provider", e.Module, "error", err)
				continue
			}
			priority = append(priority, e.Module)
		default:
			log.Warn("skipping provider: no in-process constructor wired for it in this harness", "provider", e.Module)
		}
	}

	providers := make(map[string]any, live.Count())
	for _, name := range priority {
		p, ok := live.Get(name)
		if !ok {
			continue
		}
		providers[name] = p
	}

	return providers, priority
}

// sessionModuleNames reads the orchestrator/context module ids a bundle's
// session block names, defaulting to this harness's own reference
// implementations when the bundle is silent.
func sessionModuleNames(session map[string]any) (string, string) {
	orchestratorName := "basic"
	contextName := "simple"
	if session == nil {
		return orchestratorName, contextName
	}
	if v, ok := session["orchestrator"].(string); ok && v != "" {
		orchestratorName = v
	}
	if v, ok := session["context"].(string); ok && v != "" {
		contextName = v
	}
	return orchestratorName, contextName
}
