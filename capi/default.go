package capi

import (
	"context"
	"sync"

	"github.com/hupe1980/confsec/core"
	"github.com/hupe1980/confsec/engine"
)

// defaultRuntime lazily builds the process-wide runtime on first use.
var defaultRuntime = sync.OnceValue(func() *Runtime {
	return NewRuntime(engine.New())
})

// Default returns the process-wide Runtime, backed by an engine with
// default configuration. It is created on first use and shared by all
// package-level functions.
func Default() *Runtime { return defaultRuntime() }

// ClientCreate calls Default().ClientCreate.
func ClientCreate(ctx context.Context, apiKey string, concurrentRequestsTarget, maxCandidateNodes int, defaultNodeTags []string, environment *string) (core.ClientHandle, error) {
	return Default().ClientCreate(ctx, apiKey, concurrentRequestsTarget, maxCandidateNodes, defaultNodeTags, environment)
}

// ClientDestroy calls Default().ClientDestroy.
func ClientDestroy(h core.ClientHandle) error { return Default().ClientDestroy(h) }

// ClientGetDefaultCreditAmountPerRequest calls the corresponding Default() method.
func ClientGetDefaultCreditAmountPerRequest(h core.ClientHandle) (int64, error) {
	return Default().ClientGetDefaultCreditAmountPerRequest(h)
}

// ClientGetMaxCandidateNodes calls Default().ClientGetMaxCandidateNodes.
func ClientGetMaxCandidateNodes(h core.ClientHandle) (int, error) {
	return Default().ClientGetMaxCandidateNodes(h)
}

// ClientGetDefaultNodeTags calls Default().ClientGetDefaultNodeTags.
func ClientGetDefaultNodeTags(h core.ClientHandle) ([]string, error) {
	return Default().ClientGetDefaultNodeTags(h)
}

// ClientSetDefaultNodeTags calls Default().ClientSetDefaultNodeTags.
func ClientSetDefaultNodeTags(h core.ClientHandle, tags []string) error {
	return Default().ClientSetDefaultNodeTags(h, tags)
}

// ClientGetWalletStatus calls Default().ClientGetWalletStatus.
func ClientGetWalletStatus(ctx context.Context, h core.ClientHandle) (string, error) {
	return Default().ClientGetWalletStatus(ctx, h)
}

// ClientDoRequest calls Default().ClientDoRequest.
func ClientDoRequest(ctx context.Context, h core.ClientHandle, payload []byte) (core.ResponseHandle, error) {
	return Default().ClientDoRequest(ctx, h, payload)
}

// ResponseDestroy calls Default().ResponseDestroy.
func ResponseDestroy(h core.ResponseHandle) error { return Default().ResponseDestroy(h) }

// ResponseGetMetadata calls Default().ResponseGetMetadata.
func ResponseGetMetadata(h core.ResponseHandle) ([]byte, error) {
	return Default().ResponseGetMetadata(h)
}

// ResponseIsStreaming calls Default().ResponseIsStreaming.
func ResponseIsStreaming(h core.ResponseHandle) (bool, error) {
	return Default().ResponseIsStreaming(h)
}

// ResponseGetBody calls Default().ResponseGetBody.
func ResponseGetBody(h core.ResponseHandle) ([]byte, error) {
	return Default().ResponseGetBody(h)
}

// ResponseGetStream calls Default().ResponseGetStream.
func ResponseGetStream(h core.ResponseHandle) (core.StreamHandle, error) {
	return Default().ResponseGetStream(h)
}

// ResponseStreamGetNext calls Default().ResponseStreamGetNext.
func ResponseStreamGetNext(h core.StreamHandle) ([]byte, bool, error) {
	return Default().ResponseStreamGetNext(h)
}

// ResponseStreamDestroy calls Default().ResponseStreamDestroy.
func ResponseStreamDestroy(h core.StreamHandle) error {
	return Default().ResponseStreamDestroy(h)
}
