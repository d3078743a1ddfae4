package engine

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hupe1980/confsec/core"
	"github.com/hupe1980/confsec/logging"
)

// Config defines tuning parameters for the Engine's operational behavior.
//
// This configuration focuses on the transport and refresh characteristics of
// the engine:
//   - Backend: Where the control plane (wallet, node directory) lives
//   - Dispatch: How long a single dispatch attempt may take
//   - Caching: How long a fetched node directory stays fresh
//
// Additional concerns such as custom HTTP transports, logging and lifecycle
// callbacks are configured via functional options rather than expanding this
// struct to maintain simplicity and focused responsibility.
//
// Example:
//
//	cfg := Config{
//	    BackendURL: "https://api.confsec.cloud",
//	    DispatchTimeout: 2 * time.Minute,
//	    NodeRefreshInterval: 30 * time.Second,
//	}
type Config struct {
	// BackendURL is the base URL of the confsec control plane used for
	// credential validation, wallet queries and node discovery.
	BackendURL string

	// DispatchTimeout bounds a single dispatch attempt. For streaming
	// responses it covers the wait for response headers; for buffered
	// responses it covers the complete body download. Set to 0 to rely
	// solely on caller contexts.
	DispatchTimeout time.Duration

	// NodeRefreshInterval controls how long a client's cached node
	// directory is considered fresh. Stale directories are refetched on the
	// next dispatch.
	NodeRefreshInterval time.Duration

	// UserAgent is sent on every backend and node request.
	UserAgent string
}

// DefaultConfig provides production-ready default configuration values.
//
// These defaults are chosen for:
//   - Safety: Bounded dispatch attempts prevent stuck requests
//   - Freshness: Node directories refresh frequently enough to follow
//     routing changes without hammering the control plane
//   - Compatibility: The public confsec backend endpoint
//
// Configuration values:
//   - BackendURL: the public confsec control plane
//   - DispatchTimeout: 2 minutes (covers slow generations)
//   - NodeRefreshInterval: 30 seconds
var DefaultConfig = Config{
	BackendURL:          "https://api.confsec.cloud",
	DispatchTimeout:     2 * time.Minute,
	NodeRefreshInterval: 30 * time.Second,
	UserAgent:           "confsec-go/0.1.0",
}

// Options configures an Engine instance using the functional options pattern.
//
// The Options struct follows the functional options pattern, allowing for:
//   - Clear, readable configuration
//   - Optional parameters with sensible defaults
//   - Future extensibility without breaking changes
//
// Example:
//
//	eng := New(
//	    WithConfig(customConfig),
//	    WithHTTPClient(instrumentedClient),
//	    WithLogger(myLogger),
//	)
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// HTTPClient performs all backend and node requests. Defaults to a
	// plain http.Client without a global timeout so that streaming bodies
	// are never cut off mid-read; per-attempt limits come from
	// Config.DispatchTimeout and caller contexts.
	HTTPClient *http.Client

	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil to ensure no logging dependencies.
	Logger logging.Logger

	// Callbacks receives dispatch lifecycle hooks. Defaults to an empty
	// manager.
	Callbacks *CallbackManager
}

// WithConfig overrides the default engine configuration.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithHTTPClient overrides the HTTP client used for backend and node traffic.
func WithHTTPClient(c *http.Client) func(o *Options) {
	return func(o *Options) { o.HTTPClient = c }
}

// WithLogger overrides the NoOp default logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithCallbacks installs a callback manager for dispatch lifecycle hooks.
func WithCallbacks(cm *CallbackManager) func(o *Options) {
	return func(o *Options) { o.Callbacks = cm }
}

// Engine owns all confsec client resources and implements core.Engine.
//
// The Engine serves as the resource table and dispatch pipeline behind every
// public confsec surface. It provides:
//
// Core Responsibilities:
//   - Handle Allocation: Opaque non-zero handles from one shared counter
//   - Lifecycle Management: Exactly-once destroys with eager descendant
//     invalidation
//   - Request Routing: Tag-filtered candidate selection with failover
//   - Wallet Accounting: Credential validation, snapshots and debits
//   - Streaming: SSE-decoded chunk cursors over node responses
//
// Concurrency Model:
//   - Thread-safe resource table via RWMutex held for short sections only
//   - Network work performed outside the table lock
//   - Client liveness re-checked before registering dispatch results
//   - Per-stream mutexes serialize chunk reads
//
// Error Handling:
//   - Every failure is classified with a core.ErrorKind
//   - Handle misuse never panics; it reports invalid handle errors
//   - Stream exhaustion is reported as success, never as an error
type Engine struct {
	// Configuration - immutable after construction
	config Config

	// Backend control plane client - immutable after construction
	backend *backendClient

	// HTTP client shared by backend and node traffic
	httpClient *http.Client

	// Structured logging interface
	logger logging.Logger

	// Dispatch lifecycle hooks
	callbacks *CallbackManager

	// Resource table - protected by mu
	mu         sync.RWMutex
	nextHandle uint64
	clients    map[core.ClientHandle]*clientState
	responses  map[core.ResponseHandle]*responseState
	streams    map[core.StreamHandle]*streamState
}

// Compile-time interface assertion.
var _ core.Engine = (*Engine)(nil)

// New creates a new Engine instance with sensible defaults and optional configuration.
//
// The constructor uses the functional options pattern to provide flexible
// configuration while maintaining backward compatibility and ease of use.
//
// Default behavior:
//   - Config: DefaultConfig (public backend, 2 minute dispatch bound)
//   - HTTPClient: plain http.Client without a global timeout
//   - Logger: No-op logger that discards all messages
//   - Callbacks: empty manager
//
// The returned Engine is immediately ready for use and is safe for
// concurrent access. All public methods are thread-safe, and the Engine
// manages its own internal synchronization.
//
// Examples:
//
//	// Minimal setup with all defaults
//	eng := New()
//
//	// Custom backend and logging
//	eng := New(
//	    WithConfig(Config{BackendURL: "https://staging.confsec.cloud"}),
//	    WithLogger(logger),
//	)
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:     DefaultConfig,
		HTTPClient: &http.Client{},
		Logger:     logging.NoOpLogger{},
		Callbacks:  NewCallbackManager(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	return &Engine{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		callbacks:  opts.Callbacks,
		backend: &backendClient{
			baseURL:    opts.Config.BackendURL,
			httpClient: opts.HTTPClient,
			userAgent:  opts.Config.UserAgent,
			logger:     opts.Logger,
		},

		// Runtime state - initialized empty
		clients:   make(map[core.ClientHandle]*clientState),
		responses: make(map[core.ResponseHandle]*responseState),
		streams:   make(map[core.StreamHandle]*streamState),
	}
}

// nextHandleLocked returns the next handle value. Callers must hold e.mu.
// Handle values start at 1 and are shared across resource kinds, so no value
// is ever reused and no two live resources share a value.
func (e *Engine) nextHandleLocked() uint64 {
	e.nextHandle++
	return e.nextHandle
}

// ClientCreate validates cfg, verifies the credentials against the backend
// wallet endpoint and registers a new client resource.
//
// The wallet fetch doubles as credential validation: a client whose API key
// the backend rejects is never created. The fetched snapshot seeds the
// client's default credit amount per request and its advisory credit
// reservation (ConcurrentRequestsTarget x per-request amount).
//
// Returns a non-zero handle on success. Every failure is classified as a
// configuration error.
func (e *Engine) ClientCreate(ctx context.Context, cfg core.ClientConfig) (core.ClientHandle, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	cfg = cfg.Clone()

	start := time.Now()

	info, raw, err := e.backend.fetchWallet(ctx, cfg.APIKey, cfg.Environment)
	if err != nil {
		return 0, core.WrapError(core.KindConfiguration, "validating credentials against backend", err)
	}

	w := newWallet(info, raw)
	w.reserve(int64(cfg.ConcurrentRequestsTarget) * info.DefaultCreditAmountPerRequest)

	e.executeCallbacks(ctx, CallbackOnWalletRefresh, &CallbackContext{Wallet: info})

	e.mu.Lock()
	h := core.ClientHandle(e.nextHandleLocked())
	e.clients[h] = &clientState{
		config:    cfg,
		wallet:    w,
		flight:    newFlightTracker(cfg.ConcurrentRequestsTarget),
		responses: make(map[core.ResponseHandle]struct{}),
	}
	e.mu.Unlock()

	e.logger.Debug("engine created client handle=%s wallet_balance=%d reserved=%d duration=%s",
		h, info.Balance, w.reservedAmount(), time.Since(start))

	return h, nil
}

// ClientDestroy releases the client resource and eagerly invalidates every
// response and stream derived from it. In-flight bodies belonging to those
// descendants are cancelled. The handle (and its descendants' handles) fail
// with invalid handle errors afterwards.
func (e *Engine) ClientDestroy(h core.ClientHandle) error {
	e.mu.Lock()
	cs, ok := e.clients[h]
	if !ok {
		e.mu.Unlock()
		return core.Errorf(core.KindInvalidHandle, "unknown or destroyed client handle %s", h)
	}

	delete(e.clients, h)

	// Collect descendants while holding the lock; release them after.
	var cleanup []func()
	for rh := range cs.responses {
		rs, ok := e.responses[rh]
		if !ok {
			continue
		}
		delete(e.responses, rh)
		if rs.stream != 0 {
			if st, ok := e.streams[rs.stream]; ok {
				delete(e.streams, rs.stream)
				cleanup = append(cleanup, st.release)
			}
		}
		cleanup = append(cleanup, rs.release)
	}
	e.mu.Unlock()

	for _, fn := range cleanup {
		fn()
	}

	e.logger.Debug("engine destroyed client handle=%s descendants=%d", h, len(cleanup))

	return nil
}

// ClientDefaultCreditAmountPerRequest reports the credit amount attached to a
// dispatch by default, as seeded from the wallet snapshot.
func (e *Engine) ClientDefaultCreditAmountPerRequest(h core.ClientHandle) (int64, error) {
	cs, err := e.lookupClient(h)
	if err != nil {
		return 0, err
	}
	return cs.wallet.defaultCredits(), nil
}

// ClientMaxCandidateNodes reports the configured candidate cap.
func (e *Engine) ClientMaxCandidateNodes(h core.ClientHandle) (int, error) {
	cs, err := e.lookupClient(h)
	if err != nil {
		return 0, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return cs.config.MaxCandidateNodes, nil
}

// ClientDefaultNodeTags returns a copy of the default tag sequence in
// configured order with duplicates preserved.
func (e *Engine) ClientDefaultNodeTags(h core.ClientHandle) ([]string, error) {
	cs, err := e.lookupClient(h)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), cs.config.DefaultNodeTags...), nil
}

// ClientSetDefaultNodeTags replaces the default tag sequence wholesale. An
// empty or nil slice clears it. Dispatches already in flight keep the tags
// they were selected with; later dispatches use the new sequence.
func (e *Engine) ClientSetDefaultNodeTags(h core.ClientHandle, tags []string) error {
	cs, err := e.lookupClient(h)
	if err != nil {
		return err
	}

	e.mu.Lock()
	cs.config.DefaultNodeTags = append([]string(nil), tags...)
	e.mu.Unlock()

	e.logger.Debug("engine replaced default node tags handle=%s tags=%d", h, len(tags))

	return nil
}

// ClientWalletStatus fetches the current wallet state from the backend and
// returns it in the backend's serialized form. The local snapshot is
// refreshed as a side effect. Failures are classified as request errors;
// credential problems discovered here no longer count as configuration
// errors because the client itself was created successfully.
func (e *Engine) ClientWalletStatus(ctx context.Context, h core.ClientHandle) (string, error) {
	cs, err := e.lookupClient(h)
	if err != nil {
		return "", err
	}

	e.mu.RLock()
	apiKey := cs.config.APIKey
	environment := cs.config.Environment
	e.mu.RUnlock()

	start := time.Now()

	info, raw, err := e.backend.fetchWallet(ctx, apiKey, environment)
	if err != nil {
		return "", core.WrapError(core.KindRequest, "fetching wallet status", err)
	}

	cs.wallet.refresh(info, raw)

	e.executeCallbacks(ctx, CallbackOnWalletRefresh, &CallbackContext{Client: h, Wallet: info})

	e.logger.Debug("engine refreshed wallet handle=%s balance=%d duration=%s", h, info.Balance, time.Since(start))

	return raw, nil
}

// lookupClient resolves a client handle or reports an invalid handle error.
func (e *Engine) lookupClient(h core.ClientHandle) (*clientState, error) {
	e.mu.RLock()
	cs, ok := e.clients[h]
	e.mu.RUnlock()

	if !ok {
		return nil, core.Errorf(core.KindInvalidHandle, "unknown or destroyed client handle %s", h)
	}

	return cs, nil
}

// lookupResponse resolves a response handle or reports an invalid handle error.
func (e *Engine) lookupResponse(h core.ResponseHandle) (*responseState, error) {
	e.mu.RLock()
	rs, ok := e.responses[h]
	e.mu.RUnlock()

	if !ok {
		return nil, core.Errorf(core.KindInvalidHandle, "unknown or destroyed response handle %s", h)
	}

	return rs, nil
}

// lookupStream resolves a stream handle or reports an invalid handle error.
func (e *Engine) lookupStream(h core.StreamHandle) (*streamState, error) {
	e.mu.RLock()
	st, ok := e.streams[h]
	e.mu.RUnlock()

	if !ok {
		return nil, core.Errorf(core.KindInvalidHandle, "unknown or destroyed stream handle %s", h)
	}

	return st, nil
}

// executeCallbacks runs the registered callbacks for a lifecycle point.
// Failures from observe-only callbacks are logged, never propagated; veto
// semantics exist only at CallbackBeforeDispatch and are handled by the
// dispatch pipeline directly.
func (e *Engine) executeCallbacks(ctx context.Context, t CallbackType, cc *CallbackContext) {
	if err := e.callbacks.ExecuteCallbacks(ctx, t, cc); err != nil {
		e.logger.Warn("engine callback failed type=%s err=%v", t, err)
	}
}
