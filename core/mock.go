package core

import "context"

// MockEngine is a scripted Engine useful for tests and examples. Every
// operation delegates to its function field; an unscripted operation fails
// with an internal error so unexpected calls surface immediately instead of
// silently succeeding.
type MockEngine struct {
	ClientCreateFn                        func(ctx context.Context, cfg ClientConfig) (ClientHandle, error)
	ClientDestroyFn                       func(h ClientHandle) error
	ClientDefaultCreditAmountPerRequestFn func(h ClientHandle) (int64, error)
	ClientMaxCandidateNodesFn             func(h ClientHandle) (int, error)
	ClientDefaultNodeTagsFn               func(h ClientHandle) ([]string, error)
	ClientSetDefaultNodeTagsFn            func(h ClientHandle, tags []string) error
	ClientWalletStatusFn                  func(ctx context.Context, h ClientHandle) (string, error)
	ClientDoRequestFn                     func(ctx context.Context, h ClientHandle, payload []byte) (ResponseHandle, error)
	ResponseDestroyFn                     func(h ResponseHandle) error
	ResponseMetadataFn                    func(h ResponseHandle) ([]byte, error)
	ResponseIsStreamingFn                 func(h ResponseHandle) (bool, error)
	ResponseBodyFn                        func(h ResponseHandle) ([]byte, error)
	ResponseStreamFn                      func(h ResponseHandle) (StreamHandle, error)
	StreamNextFn                          func(h StreamHandle) ([]byte, bool, error)
	StreamDestroyFn                       func(h StreamHandle) error
}

// ClientCreate implements Engine.
func (m *MockEngine) ClientCreate(ctx context.Context, cfg ClientConfig) (ClientHandle, error) {
	if m.ClientCreateFn != nil {
		return m.ClientCreateFn(ctx, cfg)
	}
	return 0, NewError(KindInternal, "mock engine: ClientCreate not scripted")
}

// ClientDestroy implements Engine.
func (m *MockEngine) ClientDestroy(h ClientHandle) error {
	if m.ClientDestroyFn != nil {
		return m.ClientDestroyFn(h)
	}
	return NewError(KindInternal, "mock engine: ClientDestroy not scripted")
}

// ClientDefaultCreditAmountPerRequest implements Engine.
func (m *MockEngine) ClientDefaultCreditAmountPerRequest(h ClientHandle) (int64, error) {
	if m.ClientDefaultCreditAmountPerRequestFn != nil {
		return m.ClientDefaultCreditAmountPerRequestFn(h)
	}
	return 0, NewError(KindInternal, "mock engine: ClientDefaultCreditAmountPerRequest not scripted")
}

// ClientMaxCandidateNodes implements Engine.
func (m *MockEngine) ClientMaxCandidateNodes(h ClientHandle) (int, error) {
	if m.ClientMaxCandidateNodesFn != nil {
		return m.ClientMaxCandidateNodesFn(h)
	}
	return 0, NewError(KindInternal, "mock engine: ClientMaxCandidateNodes not scripted")
}

// ClientDefaultNodeTags implements Engine.
func (m *MockEngine) ClientDefaultNodeTags(h ClientHandle) ([]string, error) {
	if m.ClientDefaultNodeTagsFn != nil {
		return m.ClientDefaultNodeTagsFn(h)
	}
	return nil, NewError(KindInternal, "mock engine: ClientDefaultNodeTags not scripted")
}

// ClientSetDefaultNodeTags implements Engine.
func (m *MockEngine) ClientSetDefaultNodeTags(h ClientHandle, tags []string) error {
	if m.ClientSetDefaultNodeTagsFn != nil {
		return m.ClientSetDefaultNodeTagsFn(h, tags)
	}
	return NewError(KindInternal, "mock engine: ClientSetDefaultNodeTags not scripted")
}

// ClientWalletStatus implements Engine.
func (m *MockEngine) ClientWalletStatus(ctx context.Context, h ClientHandle) (string, error) {
	if m.ClientWalletStatusFn != nil {
		return m.ClientWalletStatusFn(ctx, h)
	}
	return "", NewError(KindInternal, "mock engine: ClientWalletStatus not scripted")
}

// ClientDoRequest implements Engine.
func (m *MockEngine) ClientDoRequest(ctx context.Context, h ClientHandle, payload []byte) (ResponseHandle, error) {
	if m.ClientDoRequestFn != nil {
		return m.ClientDoRequestFn(ctx, h, payload)
	}
	return 0, NewError(KindInternal, "mock engine: ClientDoRequest not scripted")
}

// ResponseDestroy implements Engine.
func (m *MockEngine) ResponseDestroy(h ResponseHandle) error {
	if m.ResponseDestroyFn != nil {
		return m.ResponseDestroyFn(h)
	}
	return NewError(KindInternal, "mock engine: ResponseDestroy not scripted")
}

// ResponseMetadata implements Engine.
func (m *MockEngine) ResponseMetadata(h ResponseHandle) ([]byte, error) {
	if m.ResponseMetadataFn != nil {
		return m.ResponseMetadataFn(h)
	}
	return nil, NewError(KindInternal, "mock engine: ResponseMetadata not scripted")
}

// ResponseIsStreaming implements Engine.
func (m *MockEngine) ResponseIsStreaming(h ResponseHandle) (bool, error) {
	if m.ResponseIsStreamingFn != nil {
		return m.ResponseIsStreamingFn(h)
	}
	return false, NewError(KindInternal, "mock engine: ResponseIsStreaming not scripted")
}

// ResponseBody implements Engine.
func (m *MockEngine) ResponseBody(h ResponseHandle) ([]byte, error) {
	if m.ResponseBodyFn != nil {
		return m.ResponseBodyFn(h)
	}
	return nil, NewError(KindInternal, "mock engine: ResponseBody not scripted")
}

// ResponseStream implements Engine.
func (m *MockEngine) ResponseStream(h ResponseHandle) (StreamHandle, error) {
	if m.ResponseStreamFn != nil {
		return m.ResponseStreamFn(h)
	}
	return 0, NewError(KindInternal, "mock engine: ResponseStream not scripted")
}

// StreamNext implements Engine.
func (m *MockEngine) StreamNext(h StreamHandle) ([]byte, bool, error) {
	if m.StreamNextFn != nil {
		return m.StreamNextFn(h)
	}
	return nil, false, NewError(KindInternal, "mock engine: StreamNext not scripted")
}

// StreamDestroy implements Engine.
func (m *MockEngine) StreamDestroy(h StreamHandle) error {
	if m.StreamDestroyFn != nil {
		return m.StreamDestroyFn(h)
	}
	return NewError(KindInternal, "mock engine: StreamDestroy not scripted")
}
