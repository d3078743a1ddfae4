package engine

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hupe1980/confsec/core"
	"github.com/openai/openai-go/packages/ssestream"
)

// clientState is the engine-owned resource behind a core.ClientHandle.
//
// The config (including the mutable DefaultNodeTags) is guarded by the
// engine's table mutex; wallet, node cache and flight tracker carry their own
// synchronization so dispatches never hold the table lock across network
// work.
type clientState struct {
	config core.ClientConfig

	wallet *wallet
	flight *flightTracker

	// Cached node directory - guarded by nodesMu
	nodesMu        sync.Mutex
	nodes          []nodeInfo
	nodesFetchedAt time.Time

	// Live descendant responses, for eager invalidation on destroy.
	// Guarded by the engine's table mutex.
	responses map[core.ResponseHandle]struct{}
}

// responseState is the engine-owned resource behind a core.ResponseHandle.
//
// Exactly one of body/httpResp is meaningful: buffered responses carry the
// complete body, streaming responses carry the open HTTP response until a
// stream cursor takes it over.
type responseState struct {
	client    core.ClientHandle
	streaming bool
	metadata  []byte

	// Buffered mode
	body []byte

	// Streaming mode
	httpResp *http.Response
	cancel   context.CancelFunc

	// Stream cursor bookkeeping - guarded by the engine's table mutex.
	// stream is non-zero while a cursor is live; streamTaken stays true
	// afterwards so the cursor is handed out at most once.
	stream      core.StreamHandle
	streamTaken bool
}

// release frees transport resources held by the response. Safe to call for
// buffered responses, where it is a no-op.
func (rs *responseState) release() {
	if rs.cancel != nil {
		rs.cancel()
	}
	if rs.httpResp != nil && rs.httpResp.Body != nil {
		_ = rs.httpResp.Body.Close()
	}
}

// streamState is the engine-owned resource behind a core.StreamHandle.
//
// The cursor is forward-only: done marks sticky exhaustion, err a sticky
// mid-stream failure. mu serializes reads so concurrent misuse of one handle
// degrades to blocking instead of corrupting the decoder.
type streamState struct {
	response core.ResponseHandle
	client   core.ClientHandle

	decoder ssestream.Decoder
	cancel  context.CancelFunc

	mu     sync.Mutex
	done   bool
	err    error
	chunks int
}

// release cancels the body context and closes the decoder (and with it the
// underlying HTTP body).
func (st *streamState) release() {
	if st.cancel != nil {
		st.cancel()
	}
	if st.decoder != nil {
		_ = st.decoder.Close()
	}
}
