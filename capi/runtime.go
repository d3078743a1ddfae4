package capi

import (
	"context"

	"github.com/hupe1980/confsec/core"
)

// Runtime binds the flat boundary entry points to one engine.
//
// A Runtime carries no resource state of its own; all client, response and
// stream resources live in the engine's table and are addressed exclusively
// through handles. Runtimes are safe for concurrent use. Operations against
// distinct handles may run in parallel; operations against the same handle
// should be serialized by the caller.
//
// Most programs use the process-wide Default runtime through the
// package-level functions; constructing a Runtime directly is for embedders
// that bring their own engine (custom configuration, instrumentation, or a
// scripted engine in tests).
type Runtime struct {
	eng core.Engine
}

// NewRuntime binds the boundary surface to the given engine. The engine
// must be non-nil.
func NewRuntime(eng core.Engine) *Runtime {
	return &Runtime{eng: eng}
}

// Engine returns the bound engine.
func (r *Runtime) Engine() core.Engine { return r.eng }

// ClientCreate creates a client resource and returns its handle.
//
// The call validates the credentials against the backend before the client
// exists, so it blocks on the network. defaultNodeTags keeps its order and
// duplicates; environment distinguishes unset (nil) from the empty string.
// On failure the returned handle is zero and carries no meaning.
func (r *Runtime) ClientCreate(ctx context.Context, apiKey string, concurrentRequestsTarget, maxCandidateNodes int, defaultNodeTags []string, environment *string) (core.ClientHandle, error) {
	h, err := r.eng.ClientCreate(ctx, core.ClientConfig{
		APIKey:                   apiKey,
		ConcurrentRequestsTarget: concurrentRequestsTarget,
		MaxCandidateNodes:        maxCandidateNodes,
		DefaultNodeTags:          defaultNodeTags,
		Environment:              environment,
	})
	if err != nil {
		return 0, err
	}
	if !h.IsValid() {
		return 0, core.NewError(core.KindInternal, "engine returned zero client handle without error")
	}
	return h, nil
}

// ClientDestroy releases the client and every response and stream derived
// from it. The handle must not be used afterwards; destroying it a second
// time is an invalid handle error, not a no-op.
func (r *Runtime) ClientDestroy(h core.ClientHandle) error {
	return r.eng.ClientDestroy(h)
}

// ClientGetDefaultCreditAmountPerRequest reports the credit amount attached
// to each dispatch by default.
func (r *Runtime) ClientGetDefaultCreditAmountPerRequest(h core.ClientHandle) (int64, error) {
	return r.eng.ClientDefaultCreditAmountPerRequest(h)
}

// ClientGetMaxCandidateNodes reports the client's candidate node cap.
func (r *Runtime) ClientGetMaxCandidateNodes(h core.ClientHandle) (int, error) {
	return r.eng.ClientMaxCandidateNodes(h)
}

// ClientGetDefaultNodeTags returns the default tag sequence in configured
// order with duplicates preserved. The result is never nil on success; a
// client without tags yields an empty slice.
func (r *Runtime) ClientGetDefaultNodeTags(h core.ClientHandle) ([]string, error) {
	tags, err := r.eng.ClientDefaultNodeTags(h)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// ClientSetDefaultNodeTags replaces the default tag sequence wholesale. An
// empty or nil slice clears it.
func (r *Runtime) ClientSetDefaultNodeTags(h core.ClientHandle, tags []string) error {
	return r.eng.ClientSetDefaultNodeTags(h, tags)
}

// ClientGetWalletStatus fetches the wallet state from the backend and
// returns it in the backend's serialized form, opaque at this layer. The
// call blocks on the network.
func (r *Runtime) ClientGetWalletStatus(ctx context.Context, h core.ClientHandle) (string, error) {
	return r.eng.ClientWalletStatus(ctx, h)
}

// ClientDoRequest dispatches one opaque payload and returns the handle of
// the resulting response resource.
//
// The payload is length-based bytes; embedded zero bytes are preserved. The
// call blocks until response headers arrive (streaming delivery) or until
// the complete body is read (buffered delivery). On failure the returned
// handle is zero and carries no meaning.
func (r *Runtime) ClientDoRequest(ctx context.Context, h core.ClientHandle, payload []byte) (core.ResponseHandle, error) {
	rh, err := r.eng.ClientDoRequest(ctx, h, payload)
	if err != nil {
		return 0, err
	}
	if !rh.IsValid() {
		return 0, core.NewError(core.KindInternal, "engine returned zero response handle without error")
	}
	return rh, nil
}

// ResponseDestroy releases the response and a stream derived from it. The
// handle must not be used afterwards.
func (r *Runtime) ResponseDestroy(h core.ResponseHandle) error {
	return r.eng.ResponseDestroy(h)
}

// ResponseGetMetadata returns the engine-assembled routing metadata,
// available in both delivery modes. The result is never nil on success;
// empty metadata is an empty slice.
func (r *Runtime) ResponseGetMetadata(h core.ResponseHandle) ([]byte, error) {
	md, err := r.eng.ResponseMetadata(h)
	if err != nil {
		return nil, err
	}
	if md == nil {
		return nil, core.NewError(core.KindInternal, "engine returned nil metadata without error")
	}
	return md, nil
}

// ResponseIsStreaming reports the delivery mode, fixed when the response
// was created.
func (r *Runtime) ResponseIsStreaming(h core.ResponseHandle) (bool, error) {
	return r.eng.ResponseIsStreaming(h)
}

// ResponseGetBody returns the complete body of a buffered response. Asking
// a streaming response for its body is an error; read it from the stream
// instead. The result is never nil on success; an empty body is an empty
// slice.
func (r *Runtime) ResponseGetBody(h core.ResponseHandle) ([]byte, error) {
	body, err := r.eng.ResponseBody(h)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, core.NewError(core.KindInternal, "engine returned nil body without error")
	}
	return body, nil
}

// ResponseGetStream returns the handle of the response's chunk stream. The
// stream exists only for streaming responses and is handed out at most
// once. On failure the returned handle is zero and carries no meaning.
func (r *Runtime) ResponseGetStream(h core.ResponseHandle) (core.StreamHandle, error) {
	sh, err := r.eng.ResponseStream(h)
	if err != nil {
		return 0, err
	}
	if !sh.IsValid() {
		return 0, core.NewError(core.KindInternal, "engine returned zero stream handle without error")
	}
	return sh, nil
}

// ResponseStreamGetNext advances the stream cursor by one chunk.
//
// Outcomes:
//   - (chunk, true, nil): one chunk; empty chunks are legal and non-nil
//   - (nil, false, nil): the stream is exhausted, a success outcome that
//     repeats on every further call
//   - (nil, false, err): a failure; after a stream error the same error
//     repeats on every further call
func (r *Runtime) ResponseStreamGetNext(h core.StreamHandle) ([]byte, bool, error) {
	chunk, ok, err := r.eng.StreamNext(h)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if chunk == nil {
		return nil, false, core.NewError(core.KindInternal, "engine returned nil chunk without error")
	}
	return chunk, true, nil
}

// ResponseStreamDestroy releases the stream cursor. The parent response
// stays alive, but the cursor cannot be obtained again.
func (r *Runtime) ResponseStreamDestroy(h core.StreamHandle) error {
	return r.eng.StreamDestroy(h)
}
