package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/amplifier-run/amplifier/hooks"
)

// Status is a Session's position in its lifecycle state machine.
type Status string

const (
	StatusCreated      Status = "created"
	StatusInitialized  Status = "initialized"
	StatusExecuting    Status = "executing"
	StatusIdle         Status = "idle"
	StatusShuttingDown Status = "shutting_down"
	StatusClosed       Status = "closed"
)

// ContextManager is the narrow shape a Session needs from an external
// context manager (§4.6) — defined here, on the consumer side, so
// contextmgr's concrete implementations satisfy it structurally without
// this package importing contextmgr.
type ContextManager interface {
	AddMessage(ctx context.Context, msg map[string]any) error
	GetMessages() []map[string]any
	GetMessagesForRequest(ctx context.Context, provider string) ([]map[string]any, error)
	Clear()
}

// Orchestrator is the narrow shape a Session needs from an external
// orchestrator (§4.7), defined consumer-side for the same reason.
type Orchestrator interface {
	Execute(
		ctx context.Context,
		prompt string,
		cm ContextManager,
		providers map[string]any,
		tools map[string]any,
		hookRegistry *hooks.Registry,
		coordinator *Coordinator,
	) (string, error)
}

// Config validates the two module selections a Session cannot start
// without: which orchestrator and which context manager to use.
type Config struct {
	Orchestrator string
	Context      string
}

func (c Config) validate() error {
	if c.Orchestrator == "" {
		return fmt.Errorf("config.session.orchestrator must be set")
	}
	if c.Context == "" {
		return fmt.Errorf("config.session.context must be set")
	}
	return nil
}

// Mounts is what Initialize wires into the Coordinator: the already-
// constructed orchestrator/context manager and the provider/tool instances
// keyed by module id. Unlike the original's dynamic module loader, Go has
// no runtime import-by-source-uri — the application constructs these
// instances (e.g. from a resolved bundle.PreparedBundle plus its own
// constructor table) and hands them to Initialize directly.
type Mounts struct {
	Orchestrator   Orchestrator
	ContextManager ContextManager
	Providers      map[string]any
	Tools          map[string]any

	// Instruction is the bundle's markdown body (MountPlan.Instruction),
	// surfaced to the orchestrator as a system instruction per §1 — seeded
	// into the context manager as the first message so every provider
	// request carries it. Empty for a bundle with no instruction body.
	Instruction string
}

// Session drives one prompt/response lifecycle through a Coordinator:
// created → initialized → executing ↔ idle → shutting_down → closed, with
// every transition emitted as a "session:<status>" hook event.
type Session struct {
	mu sync.Mutex

	id          string
	status      Status
	coordinator *Coordinator
	hooks       *hooks.Registry

	orchestrator Orchestrator
	context      ContextManager
	providers    map[string]any
	tools        map[string]any
}

// NewSession validates cfg, assigns sessionID (generating a fresh UUID if
// empty), and emits session:start.
func NewSession(ctx context.Context, cfg Config, sessionID string, hookRegistry *hooks.Registry) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if hookRegistry == nil {
		hookRegistry = hooks.New()
	}

	s := &Session{
		id:          sessionID,
		status:      StatusCreated,
		coordinator: NewCoordinator(),
		hooks:       hookRegistry,
	}
	s.emit(ctx, "session:start", map[string]any{"session_id": sessionID})
	return s, nil
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Status returns the session's current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Coordinator exposes the session's mount-point registry.
func (s *Session) Coordinator() *Coordinator { return s.coordinator }

// Initialize mounts every entry in mounts into the Coordinator. A missing
// orchestrator or context manager is a fatal shortage, raised immediately;
// a missing provider set is not fatal here — it only becomes fatal the
// first time Execute is attempted with none mounted.
func (s *Session) Initialize(ctx context.Context, mounts Mounts) error {
	if mounts.Orchestrator == nil {
		return fmt.Errorf("session %s: no orchestrator mounted", s.id)
	}
	if mounts.ContextManager == nil {
		return fmt.Errorf("session %s: no context manager mounted", s.id)
	}

	if mounts.Instruction != "" {
		if err := mounts.ContextManager.AddMessage(ctx, map[string]any{
			"role":    "system",
			"content": mounts.Instruction,
		}); err != nil {
			return fmt.Errorf("session %s: seeding bundle instruction: %w", s.id, err)
		}
	}

	s.mu.Lock()
	s.orchestrator = mounts.Orchestrator
	s.context = mounts.ContextManager
	s.providers = mounts.Providers
	s.tools = mounts.Tools
	s.mu.Unlock()

	s.coordinator.Mount("orchestrator", mounts.Orchestrator)
	s.coordinator.Mount("context", mounts.ContextManager)
	for id, p := range mounts.Providers {
		s.coordinator.MountInto("providers", id, p)
	}
	for id, t := range mounts.Tools {
		s.coordinator.MountInto("tools", id, t)
	}

	s.setStatus(ctx, StatusInitialized)
	return nil
}

// Execute delegates to orchestrator.Execute, sharing context across
// repeated calls. It requires the session be initialized (or idle from a
// prior Execute) and at least one provider mounted.
func (s *Session) Execute(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	if s.status != StatusInitialized && s.status != StatusIdle {
		status := s.status
		s.mu.Unlock()
		return "", fmt.Errorf("session %s: execute called in state %q", s.id, status)
	}
	if len(s.providers) == 0 {
		s.mu.Unlock()
		return "", fmt.Errorf("session %s: no providers mounted", s.id)
	}
	orchestrator := s.orchestrator
	cm := s.context
	providers := s.providers
	tools := s.tools
	// Claim StatusExecuting in the same critical section as the guard
	// above, so two concurrent Execute calls can't both pass the check
	// and run the orchestrator against shared state at once.
	s.status = StatusExecuting
	s.mu.Unlock()
	s.emit(ctx, "session:"+string(StatusExecuting), map[string]any{"session_id": s.id})

	result, err := orchestrator.Execute(ctx, prompt, cm, providers, tools, s.hooks, s.coordinator)
	s.setStatus(ctx, StatusIdle)

	return result, err
}

// Cleanup delegates to the Coordinator, transitioning through
// shutting_down to closed regardless of whether cleanup itself errors.
func (s *Session) Cleanup(ctx context.Context) error {
	s.setStatus(ctx, StatusShuttingDown)
	err := s.coordinator.Cleanup(ctx)
	s.setStatus(ctx, StatusClosed)
	return err
}

// Close is the io.Closer-shaped alias for Cleanup, so a Session can be used
// with a plain `defer session.Close()` the way Python's `async with
// session:` ensures cleanup on every exit path.
func (s *Session) Close() error {
	return s.Cleanup(context.Background())
}

func (s *Session) setStatus(ctx context.Context, status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.emit(ctx, "session:"+string(status), map[string]any{"session_id": s.id})
}

func (s *Session) emit(ctx context.Context, event string, data map[string]any) {
	if s.hooks == nil {
		return
	}
	_, _ = s.hooks.Emit(ctx, event, data)
}
