package core

import "context"

// Engine owns every client, response and stream resource and exposes the
// handle-keyed operations all public surfaces are built on.
//
// A concrete implementation is responsible for:
//   - Allocating opaque non-zero handles and tracking resource lifecycles
//   - Dispatching payloads to candidate nodes and classifying failures
//   - Serving buffered bodies and incremental stream reads
//   - Releasing resources exactly once per destroy
//
// Implementations SHOULD:
//   - Never reuse a handle value after the resource it named is destroyed
//   - Report destroyed or foreign handles as invalid handle errors
//   - Keep stream exhaustion distinct from stream failure
//   - Classify every returned error with an ErrorKind
type Engine interface {
	// ClientCreate validates cfg, provisions a client resource and returns
	// its handle. A zero handle is never returned together with a nil error.
	ClientCreate(ctx context.Context, cfg ClientConfig) (ClientHandle, error)

	// ClientDestroy releases the client and invalidates its handle along
	// with the handles of every response and stream derived from it.
	// Destroying an already destroyed client fails with an invalid handle
	// error.
	ClientDestroy(h ClientHandle) error

	// ClientDefaultCreditAmountPerRequest reports the credit amount the
	// engine attaches to a dispatch by default.
	ClientDefaultCreditAmountPerRequest(h ClientHandle) (int64, error)

	// ClientMaxCandidateNodes reports the configured candidate cap.
	ClientMaxCandidateNodes(h ClientHandle) (int, error)

	// ClientDefaultNodeTags returns a copy of the default tag sequence in
	// configured order with duplicates preserved.
	ClientDefaultNodeTags(h ClientHandle) ([]string, error)

	// ClientSetDefaultNodeTags replaces the default tag sequence wholesale.
	// An empty or nil slice clears it.
	ClientSetDefaultNodeTags(h ClientHandle, tags []string) error

	// ClientWalletStatus fetches the wallet state for the client's
	// credentials and returns it in the backend's serialized form.
	ClientWalletStatus(ctx context.Context, h ClientHandle) (string, error)

	// ClientDoRequest dispatches one opaque payload. Buffered responses are
	// returned complete; streaming responses return as soon as the response
	// metadata is available, with the body left to the response's stream.
	ClientDoRequest(ctx context.Context, h ClientHandle, payload []byte) (ResponseHandle, error)

	// ResponseDestroy releases the response and invalidates any stream
	// derived from it.
	ResponseDestroy(h ResponseHandle) error

	// ResponseMetadata returns the engine-assembled routing metadata.
	// Success never carries a nil slice.
	ResponseMetadata(h ResponseHandle) ([]byte, error)

	// ResponseIsStreaming reports the delivery mode fixed at creation.
	ResponseIsStreaming(h ResponseHandle) (bool, error)

	// ResponseBody returns the complete body of a buffered response. It
	// fails on streaming responses instead of returning an empty body.
	ResponseBody(h ResponseHandle) ([]byte, error)

	// ResponseStream materializes the stream cursor of a streaming
	// response. The cursor is handed out once; it fails on buffered
	// responses and on repeated calls.
	ResponseStream(h ResponseHandle) (StreamHandle, error)

	// StreamNext returns the next chunk of the stream. ok=false with a nil
	// error marks exhaustion; exhaustion is sticky, every later call
	// reports it again.
	StreamNext(h StreamHandle) (chunk []byte, ok bool, err error)

	// StreamDestroy releases the stream cursor.
	StreamDestroy(h StreamHandle) error
}
