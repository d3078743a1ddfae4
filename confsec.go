// Package confsec provides a high-level client for the confsec confidential
// request-routing service: payloads are dispatched to interchangeable compute
// nodes, consumption is metered through a credit wallet, and responses come
// back buffered or as a chunk stream. Most applications interact with this
// package by:
//  1. Creating a Client via New() with an API key (optionally tuning
//     concurrency, node selection and environment)
//  2. Dispatching opaque payloads with DoRequest
//  3. Reading the Response body directly, or iterating its Stream
//
// The package wraps the flat boundary surface in capi with ergonomic types;
// embedders that need handle-level control use capi directly. All defaults
// are safe for production use against the public backend; tests typically
// supply a scripted runtime.
package confsec

import (
	"context"
	"net/http"

	"github.com/hupe1980/confsec/capi"
	"github.com/hupe1980/confsec/core"
	"github.com/hupe1980/confsec/engine"
	"github.com/hupe1980/confsec/logging"
)

// Default client sizing applied when the options leave them unset.
const (
	DefaultConcurrentRequestsTarget = 10
	DefaultMaxCandidateNodes        = 5
)

// Options configures a Client instance.
type Options struct {
	// ConcurrentRequestsTarget sizes the client's advisory credit
	// reservation and flags dispatch concurrency above it. It is a tuning
	// hint, not a hard cap.
	ConcurrentRequestsTarget int

	// MaxCandidateNodes caps how many candidate nodes a single dispatch
	// will consider for failover.
	MaxCandidateNodes int

	// DefaultNodeTags restricts routing to nodes carrying every listed tag.
	// Order and duplicates are preserved. Empty means any node.
	DefaultNodeTags []string

	// Environment selects a backend environment. nil means unset; the empty
	// string is a valid environment name distinct from nil.
	Environment *string

	// EngineConfig tunes the engine built for this client. Ignored when
	// Runtime is set.
	EngineConfig engine.Config

	// HTTPClient performs the engine's backend and node traffic. Ignored
	// when Runtime is set.
	HTTPClient *http.Client

	// Callbacks receives the engine's dispatch lifecycle hooks. Ignored
	// when Runtime is set.
	Callbacks *engine.CallbackManager

	// Runtime overrides the boundary runtime wholesale. When set the client
	// dispatches through it and all engine-related options are ignored.
	Runtime *capi.Runtime

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// WithConcurrentRequestsTarget overrides the default concurrency target.
func WithConcurrentRequestsTarget(n int) func(o *Options) {
	return func(o *Options) { o.ConcurrentRequestsTarget = n }
}

// WithMaxCandidateNodes overrides the default candidate node cap.
func WithMaxCandidateNodes(n int) func(o *Options) {
	return func(o *Options) { o.MaxCandidateNodes = n }
}

// WithDefaultNodeTags sets the initial node tag sequence.
func WithDefaultNodeTags(tags ...string) func(o *Options) {
	return func(o *Options) { o.DefaultNodeTags = tags }
}

// WithEnvironment selects a backend environment.
func WithEnvironment(env string) func(o *Options) {
	return func(o *Options) { o.Environment = &env }
}

// WithEngineConfig tunes the engine built for this client.
func WithEngineConfig(cfg engine.Config) func(o *Options) {
	return func(o *Options) { o.EngineConfig = cfg }
}

// WithHTTPClient overrides the HTTP client used by the engine.
func WithHTTPClient(c *http.Client) func(o *Options) {
	return func(o *Options) { o.HTTPClient = c }
}

// WithCallbacks installs dispatch lifecycle hooks on the engine.
func WithCallbacks(cm *engine.CallbackManager) func(o *Options) {
	return func(o *Options) { o.Callbacks = cm }
}

// WithRuntime binds the client to an existing boundary runtime instead of
// building its own engine.
func WithRuntime(rt *capi.Runtime) func(o *Options) {
	return func(o *Options) { o.Runtime = rt }
}

// WithLogger overrides the NoOp default logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Client is the high-level handle to one confsec identity: an API key with
// its wallet, node preferences and dispatch bookkeeping. A Client is safe
// for concurrent use; DoRequest may be called from many goroutines at once.
type Client struct {
	rt     *capi.Runtime
	handle core.ClientHandle
}

// New creates a Client, validating the API key against the backend before
// returning. The call blocks on the network; ctx bounds it.
//
// Any unset option falls back to its default: ten concurrent requests
// target, five candidate nodes, no tag restriction, the public backend.
func New(ctx context.Context, apiKey string, optFns ...func(o *Options)) (*Client, error) {
	opts := Options{
		ConcurrentRequestsTarget: DefaultConcurrentRequestsTarget,
		MaxCandidateNodes:        DefaultMaxCandidateNodes,
		EngineConfig:             engine.DefaultConfig,
		Logger:                   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	rt := opts.Runtime
	if rt == nil {
		engineOpts := []func(o *engine.Options){
			engine.WithConfig(opts.EngineConfig),
			engine.WithLogger(opts.Logger),
		}
		if opts.HTTPClient != nil {
			engineOpts = append(engineOpts, engine.WithHTTPClient(opts.HTTPClient))
		}
		if opts.Callbacks != nil {
			engineOpts = append(engineOpts, engine.WithCallbacks(opts.Callbacks))
		}
		rt = capi.NewRuntime(engine.New(engineOpts...))
	}

	h, err := rt.ClientCreate(ctx, apiKey, opts.ConcurrentRequestsTarget, opts.MaxCandidateNodes, opts.DefaultNodeTags, opts.Environment)
	if err != nil {
		return nil, err
	}

	return &Client{rt: rt, handle: h}, nil
}

// Handle returns the client's boundary handle, for interoperating with capi.
func (c *Client) Handle() core.ClientHandle { return c.handle }

// Runtime returns the boundary runtime the client dispatches through.
func (c *Client) Runtime() *capi.Runtime { return c.rt }

// DoRequest dispatches one opaque payload and returns the response.
//
// The call blocks until response headers arrive (streaming delivery) or the
// complete body is read (buffered delivery). The returned Response must be
// closed when done with it; for streaming responses, closing also tears
// down a stream still in flight.
func (c *Client) DoRequest(ctx context.Context, payload []byte) (*Response, error) {
	rh, err := c.rt.ClientDoRequest(ctx, c.handle, payload)
	if err != nil {
		return nil, err
	}

	streaming, err := c.rt.ResponseIsStreaming(rh)
	if err != nil {
		_ = c.rt.ResponseDestroy(rh)
		return nil, err
	}

	return &Response{rt: c.rt, handle: rh, streaming: streaming}, nil
}

// WalletStatus fetches the current wallet state from the backend and
// returns it in the backend's serialized form. The call blocks on the
// network; ctx bounds it.
func (c *Client) WalletStatus(ctx context.Context) (string, error) {
	return c.rt.ClientGetWalletStatus(ctx, c.handle)
}

// DefaultCreditAmountPerRequest reports the credit amount attached to each
// dispatch by default.
func (c *Client) DefaultCreditAmountPerRequest() (int64, error) {
	return c.rt.ClientGetDefaultCreditAmountPerRequest(c.handle)
}

// MaxCandidateNodes reports the candidate node cap.
func (c *Client) MaxCandidateNodes() (int, error) {
	return c.rt.ClientGetMaxCandidateNodes(c.handle)
}

// DefaultNodeTags returns the default node tag sequence in configured order
// with duplicates preserved.
func (c *Client) DefaultNodeTags() ([]string, error) {
	return c.rt.ClientGetDefaultNodeTags(c.handle)
}

// SetDefaultNodeTags replaces the default node tag sequence wholesale. An
// empty call clears it; later dispatches use the new sequence.
func (c *Client) SetDefaultNodeTags(tags ...string) error {
	return c.rt.ClientSetDefaultNodeTags(c.handle, tags)
}

// Close destroys the client and every response and stream derived from it.
// The Client (and any Response or Stream it produced) must not be used
// afterwards. Close is not idempotent.
func (c *Client) Close() error {
	return c.rt.ClientDestroy(c.handle)
}
