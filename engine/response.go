package engine

import (
	"github.com/hupe1980/confsec/core"
	"github.com/openai/openai-go/packages/ssestream"
)

// cloneBytes copies engine-owned bytes for handoff across the boundary.
// Success results are never nil, so empty data stays a non-nil empty slice.
func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return []byte{}
	}
	return append([]byte(nil), b...)
}

// ResponseDestroy releases the response resource. A live stream derived from
// it is invalidated along with it and its body context is cancelled.
// Destroying the same handle twice is an invalid handle error.
func (e *Engine) ResponseDestroy(h core.ResponseHandle) error {
	e.mu.Lock()
	rs, ok := e.responses[h]
	if !ok {
		e.mu.Unlock()
		return core.Errorf(core.KindInvalidHandle, "unknown or destroyed response handle %s", h)
	}

	delete(e.responses, h)
	if cs, ok := e.clients[rs.client]; ok {
		delete(cs.responses, h)
	}

	var cleanup []func()
	if rs.stream != 0 {
		if st, ok := e.streams[rs.stream]; ok {
			delete(e.streams, rs.stream)
			cleanup = append(cleanup, st.release)
		}
	}
	cleanup = append(cleanup, rs.release)
	e.mu.Unlock()

	for _, fn := range cleanup {
		fn()
	}

	e.logger.Debug("engine destroyed response handle=%s", h)

	return nil
}

// ResponseMetadata returns a copy of the engine-assembled routing metadata.
// Metadata is available in both delivery modes as soon as the response
// exists.
func (e *Engine) ResponseMetadata(h core.ResponseHandle) ([]byte, error) {
	rs, err := e.lookupResponse(h)
	if err != nil {
		return nil, err
	}

	return cloneBytes(rs.metadata), nil
}

// ResponseIsStreaming reports the delivery mode fixed when the response was
// created.
func (e *Engine) ResponseIsStreaming(h core.ResponseHandle) (bool, error) {
	rs, err := e.lookupResponse(h)
	if err != nil {
		return false, err
	}

	return rs.streaming, nil
}

// ResponseBody returns a copy of the complete body of a buffered response.
// Asking a streaming response for its body is a request error, never a
// silent empty result.
func (e *Engine) ResponseBody(h core.ResponseHandle) ([]byte, error) {
	rs, err := e.lookupResponse(h)
	if err != nil {
		return nil, err
	}

	if rs.streaming {
		return nil, core.NewError(core.KindRequest, "response is streaming; read its body from the stream")
	}

	return cloneBytes(rs.body), nil
}

// ResponseStream materializes the stream cursor of a streaming response and
// hands ownership of the HTTP body to it. The cursor is handed out at most
// once per response; buffered responses have no stream.
func (e *Engine) ResponseStream(h core.ResponseHandle) (core.StreamHandle, error) {
	e.mu.Lock()
	rs, ok := e.responses[h]
	if !ok {
		e.mu.Unlock()
		return 0, core.Errorf(core.KindInvalidHandle, "unknown or destroyed response handle %s", h)
	}

	if !rs.streaming {
		e.mu.Unlock()
		return 0, core.NewError(core.KindRequest, "response is buffered; read its body instead of a stream")
	}

	if rs.streamTaken {
		e.mu.Unlock()
		return 0, core.NewError(core.KindRequest, "stream already obtained for this response")
	}

	st := &streamState{
		response: h,
		client:   rs.client,
		decoder:  ssestream.NewDecoder(rs.httpResp),
		cancel:   rs.cancel,
	}

	sh := core.StreamHandle(e.nextHandleLocked())
	e.streams[sh] = st
	rs.stream = sh
	rs.streamTaken = true
	rs.httpResp = nil
	e.mu.Unlock()

	e.logger.Debug("engine materialized stream response=%s stream=%s", h, sh)

	return sh, nil
}
