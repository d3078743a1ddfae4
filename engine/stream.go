package engine

import (
	"bytes"
	"context"

	"github.com/hupe1980/confsec/core"
)

// doneSentinel terminates a chunk stream in-band, matching the convention of
// SSE-speaking inference APIs. A clean EOF without the sentinel also counts
// as exhaustion.
var doneSentinel = []byte("[DONE]")

// StreamNext returns the next chunk of the stream.
//
// Outcomes:
//   - (chunk, true, nil): one chunk; empty chunks are legal
//   - (nil, false, nil): exhaustion, a success outcome; sticky
//   - (nil, false, err): invalid handle, or a sticky stream error when the
//     transport failed mid-stream
//
// The cursor is forward-only and never restarts. Reads on one handle are
// serialized internally; callers that share a handle across goroutines get
// blocking, not corruption, but chunk ordering is then theirs to reason
// about.
func (e *Engine) StreamNext(h core.StreamHandle) ([]byte, bool, error) {
	st, err := e.lookupStream(h)
	if err != nil {
		return nil, false, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.err != nil {
		return nil, false, st.err
	}
	if st.done {
		return nil, false, nil
	}

	if st.decoder.Next() {
		// The SSE decoder joins data lines with a trailing newline.
		data := bytes.TrimSuffix(st.decoder.Event().Data, []byte("\n"))

		if bytes.HasPrefix(data, doneSentinel) {
			st.done = true
			e.executeCallbacks(context.Background(), CallbackOnStreamEnd, &CallbackContext{
				Client:   st.client,
				Response: st.response,
				Chunks:   st.chunks,
			})
			return nil, false, nil
		}

		st.chunks++
		return cloneBytes(data), true, nil
	}

	if derr := st.decoder.Err(); derr != nil {
		st.err = core.WrapError(core.KindStream, "event stream terminated unexpectedly", derr)
		return nil, false, st.err
	}

	st.done = true
	e.executeCallbacks(context.Background(), CallbackOnStreamEnd, &CallbackContext{
		Client:   st.client,
		Response: st.response,
		Chunks:   st.chunks,
	})

	return nil, false, nil
}

// StreamDestroy releases the stream cursor, closing the underlying HTTP
// body. The parent response stays alive (its metadata remains readable) but
// the cursor cannot be obtained again.
func (e *Engine) StreamDestroy(h core.StreamHandle) error {
	e.mu.Lock()
	st, ok := e.streams[h]
	if !ok {
		e.mu.Unlock()
		return core.Errorf(core.KindInvalidHandle, "unknown or destroyed stream handle %s", h)
	}

	delete(e.streams, h)
	if rs, ok := e.responses[st.response]; ok {
		rs.stream = 0
	}
	e.mu.Unlock()

	st.release()

	st.mu.Lock()
	chunks := st.chunks
	st.mu.Unlock()

	e.logger.Debug("engine destroyed stream handle=%s chunks=%d", h, chunks)

	return nil
}
