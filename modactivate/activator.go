package modactivate

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/amplifier-run/amplifier/sourceresolve"
)

// LocalModule is the result of activating a module: its resolved local
// path and whether it declares itself an out-of-process plugin.
type LocalModule struct {
	ModuleID   string
	Path       string
	IsPlugin   bool
}

// DependencyInstaller installs whatever a module needs before it can be
// imported/mounted. The reference implementation shells to the Go
// toolchain for in-process source modules and defers to go-plugin's
// handshake for anything declaring a plugin.yaml marker.
type DependencyInstaller interface {
	Install(ctx context.Context, modulePath string) error
}

// Activator downloads modules via the Source Resolver and installs their
// dependencies at most once per environment fingerprint, mirroring
// activator.py's activate()/activate_all()/_install_dependencies.
type Activator struct {
	resolver   *sourceresolve.Resolver
	installer  DependencyInstaller
	installSt  *InstallState

	mu        sync.Mutex
	activated map[string]LocalModule // "module_id:source_uri" -> result
}

// New builds an Activator backed by resolver for source fetches and
// installer for dependency installation, with fingerprint state persisted
// under cacheDir.
func New(resolver *sourceresolve.Resolver, installer DependencyInstaller, cacheDir string) *Activator {
	if installer == nil {
		installer = GoBuildInstaller{}
	}
	return &Activator{
		resolver:  resolver,
		installer: installer,
		installSt: LoadInstallState(cacheDir),
		activated: make(map[string]LocalModule),
	}
}

// Activate resolves moduleID's source and installs its dependencies if
// they aren't already installed at the current fingerprint. Repeated calls
// with the same (moduleID, sourceURI) within the Activator's lifetime are
// served from the in-memory cache without re-resolving.
func (a *Activator) Activate(ctx context.Context, moduleID, sourceURI string) (LocalModule, error) {
	cacheKey := moduleID + ":" + sourceURI

	a.mu.Lock()
	if cached, ok := a.activated[cacheKey]; ok {
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	resolved, err := a.resolver.Resolve(ctx, sourceURI)
	if err != nil {
		return LocalModule{}, fmt.Errorf("activate %s: %w", moduleID, err)
	}

	modulePath := resolved.ActivePath
	isPlugin := hasPluginMarker(modulePath)

	if !a.installSt.IsInstalled(modulePath) {
		if err := a.installer.Install(ctx, modulePath); err != nil {
			return LocalModule{}, fmt.Errorf("activate %s: install dependencies: %w", moduleID, err)
		}
		if err := a.installSt.MarkInstalled(modulePath); err != nil {
			return LocalModule{}, fmt.Errorf("activate %s: record fingerprint: %w", moduleID, err)
		}
	}

	result := LocalModule{ModuleID: moduleID, Path: modulePath, IsPlugin: isPlugin}

	a.mu.Lock()
	a.activated[cacheKey] = result
	a.mu.Unlock()

	return result, nil
}

// Finalize persists any pending install-state changes to disk. Should be
// called after a round of activation, mirroring activator.py's finalize().
func (a *Activator) Finalize() error {
	return a.installSt.Save()
}

// ModuleEntry is one requested activation: a module name paired with the
// URI to resolve it from.
type ModuleEntry struct {
	ModuleID  string
	SourceURI string
}

// ActivateAll activates every entry concurrently, collecting a per-module
// error instead of short-circuiting on the first failure — matching
// activate_all()'s asyncio.gather(..., return_exceptions=True).
//
// golang.org/x/sync/errgroup's default Group short-circuits via context
// cancellation on the first error, which would abort sibling activations
// mid-flight; this uses a WaitGroup with per-slot result capture instead so
// every entry gets a chance to finish regardless of its neighbors.
func (a *Activator) ActivateAll(ctx context.Context, entries []ModuleEntry) (map[string]LocalModule, *multiError) {
	results := make([]LocalModule, len(entries))
	errs := make([]error, len(entries))

	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e ModuleEntry) {
			defer wg.Done()
			res, err := a.Activate(ctx, e.ModuleID, e.SourceURI)
			results[i] = res
			errs[i] = err
		}(i, e)
	}
	wg.Wait()

	activated := make(map[string]LocalModule, len(entries))
	var merr multiError
	for i, e := range entries {
		if errs[i] != nil {
			merr.errors = append(merr.errors, fmt.Errorf("%s: %w", e.ModuleID, errs[i]))
			continue
		}
		activated[e.ModuleID] = results[i]
	}

	if len(merr.errors) == 0 {
		return activated, nil
	}
	return activated, &merr
}

// multiError accumulates per-module activation failures without aborting
// the batch, per §4.2's "without short-circuiting the batch".
type multiError struct {
	errors []error
}

func (m *multiError) Error() string {
	return fmt.Sprintf("%d module(s) failed to activate: %v", len(m.errors), m.errors)
}

func (m *multiError) Errors() []error {
	return m.errors
}

func hasPluginMarker(modulePath string) bool {
	_, err := os.Stat(filepath.Join(modulePath, "plugin.yaml"))
	return err == nil
}

// GoBuildInstaller is the reference DependencyInstaller for plain Go
// source modules activated in-process: it runs `go build ./...` to fetch
// and compile the module's own dependency graph, mirroring
// activator.py's uv-pip-install step but for Go's build model. It is a
// no-op for modules carrying a plugin.yaml marker, since those are built
// and shipped as independent go-plugin binaries rather than vendored in.
type GoBuildInstaller struct{}

func (GoBuildInstaller) Install(ctx context.Context, modulePath string) error {
	if hasPluginMarker(modulePath) {
		return nil
	}
	if _, err := os.Stat(filepath.Join(modulePath, "go.mod")); err != nil {
		return nil
	}

	cmd := exec.CommandContext(ctx, "go", "build", "./...")
	cmd.Dir = modulePath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("go build: %w: %s", err, out)
	}
	return nil
}
