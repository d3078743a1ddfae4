package confsec

import (
	"github.com/hupe1980/confsec/capi"
	"github.com/hupe1980/confsec/core"
)

// Response is one dispatched request's result. Its delivery mode is fixed
// when it is created: a buffered response carries its complete body, a
// streaming response hands out chunks through a Stream.
//
// A Response must be closed when done with it. Closing releases the
// underlying resource and, for streaming responses, tears down a stream
// still in flight.
type Response struct {
	rt        *capi.Runtime
	handle    core.ResponseHandle
	streaming bool
}

// Handle returns the response's boundary handle.
func (r *Response) Handle() core.ResponseHandle { return r.handle }

// IsStreaming reports the delivery mode.
func (r *Response) IsStreaming() bool { return r.streaming }

// Metadata returns the engine-assembled routing metadata, available in both
// delivery modes. The bytes are opaque at this layer; their layout belongs
// to the engine.
func (r *Response) Metadata() ([]byte, error) {
	return r.rt.ResponseGetMetadata(r.handle)
}

// Body returns the complete body of a buffered response. Calling Body on a
// streaming response is an error; consume the Stream instead.
func (r *Response) Body() ([]byte, error) {
	return r.rt.ResponseGetBody(r.handle)
}

// Stream returns the response's chunk stream. It exists only for streaming
// responses and is handed out at most once; a second call fails.
func (r *Response) Stream() (*Stream, error) {
	sh, err := r.rt.ResponseGetStream(r.handle)
	if err != nil {
		return nil, err
	}
	return &Stream{rt: r.rt, handle: sh}, nil
}

// Close destroys the response and a stream derived from it. Close is not
// idempotent.
func (r *Response) Close() error {
	return r.rt.ResponseDestroy(r.handle)
}

// Stream iterates the chunks of a streaming response in the pull style:
//
//	stream, err := resp.Stream()
//	if err != nil { ... }
//	defer stream.Close()
//	for stream.Next() {
//	    handle(stream.Chunk())
//	}
//	if err := stream.Err(); err != nil { ... }
//
// The cursor is forward-only and never restarts. Exhaustion is a success:
// Next returns false and Err returns nil. A mid-stream failure also stops
// Next, with Err reporting the cause.
type Stream struct {
	rt     *capi.Runtime
	handle core.StreamHandle

	cur []byte
	err error
}

// Handle returns the stream's boundary handle.
func (s *Stream) Handle() core.StreamHandle { return s.handle }

// Next advances the cursor to the next chunk. It returns false when the
// stream is exhausted or failed; Err distinguishes the two.
func (s *Stream) Next() bool {
	if s.err != nil {
		return false
	}

	chunk, ok, err := s.rt.ResponseStreamGetNext(s.handle)
	if err != nil {
		s.err = err
		s.cur = nil
		return false
	}
	if !ok {
		s.cur = nil
		return false
	}

	s.cur = chunk
	return true
}

// Chunk returns the chunk the cursor is on. It is valid after a Next that
// returned true; empty chunks are legal.
func (s *Stream) Chunk() []byte { return s.cur }

// Err returns the sticky stream error, or nil after clean exhaustion.
func (s *Stream) Err() error { return s.err }

// Close destroys the stream cursor. The parent response stays alive, but
// the cursor cannot be obtained again. Close is not idempotent.
func (s *Stream) Close() error {
	return s.rt.ResponseStreamDestroy(s.handle)
}
