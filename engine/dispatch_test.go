package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/hupe1980/confsec/core"
	"github.com/hupe1980/confsec/internal/testutil"
	"github.com/stretchr/testify/assert"
)

// -------------------- Buffered Dispatch Tests --------------------

func TestEngine_DoRequest_Buffered(t *testing.T) {
	backend := testutil.NewBackend().PerRequest(50)
	defer backend.Close()

	node := testutil.NewNode().Buffered(`{"answer":42}`)
	defer node.Close()
	backend.Nodes(node.Entry("node-1", "gpu"))

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	rh, err := eng.ClientDoRequest(context.Background(), h, []byte("opaque payload"))
	assert.NoError(t, err)
	assert.True(t, rh.IsValid())

	streaming, err := eng.ResponseIsStreaming(rh)
	assert.NoError(t, err)
	assert.False(t, streaming)

	body, err := eng.ResponseBody(rh)
	assert.NoError(t, err)
	assert.Equal(t, []byte(`{"answer":42}`), body)

	// Payload and headers arrive at the node unaltered
	assert.Equal(t, []byte("opaque payload"), node.LastPayload())
	assert.Equal(t, "application/octet-stream", node.LastRequestHeader("Content-Type"))
	assert.Equal(t, "50", node.LastRequestHeader("X-Confsec-Credits"))
	assert.NotEmpty(t, node.LastRequestHeader("X-Confsec-Request-Id"))

	var md map[string]interface{}
	metadata, err := eng.ResponseMetadata(rh)
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(metadata, &md))
	assert.Equal(t, "node-1", md["node_id"])
	assert.Equal(t, false, md["streaming"])
	assert.Equal(t, float64(50), md["credits_spent"])
	assert.Equal(t, node.LastRequestHeader("X-Confsec-Request-Id"), md["request_id"])
}

func TestEngine_DoRequest_EmptyPayload(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	node := testutil.NewNode().Buffered("ok")
	defer node.Close()
	backend.Nodes(node.Entry("node-1"))

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	rh, err := eng.ClientDoRequest(context.Background(), h, []byte{})
	assert.NoError(t, err)
	assert.True(t, rh.IsValid())
	assert.Empty(t, node.LastPayload())
}

func TestEngine_DoRequest_EmptyBufferedBody(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	node := testutil.NewNode().Buffered("")
	defer node.Close()
	backend.Nodes(node.Entry("node-1"))

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	rh, err := eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.NoError(t, err)

	// An empty body is a legal success and stays distinguishable from nil
	body, err := eng.ResponseBody(rh)
	assert.NoError(t, err)
	assert.NotNil(t, body)
	assert.Len(t, body, 0)
}

// -------------------- Streaming Dispatch Tests --------------------

func TestEngine_DoRequest_Streaming(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	node := testutil.NewNode().Streaming("alpha", "beta")
	defer node.Close()
	backend.Nodes(node.Entry("node-1"))

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	rh, err := eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.NoError(t, err)

	streaming, err := eng.ResponseIsStreaming(rh)
	assert.NoError(t, err)
	assert.True(t, streaming)

	// A streaming response refuses buffered body reads
	_, err = eng.ResponseBody(rh)
	assert.Error(t, err)
	assert.True(t, core.IsRequest(err))

	assert.NoError(t, eng.ResponseDestroy(rh))
}

// -------------------- Failover Tests --------------------

func TestEngine_DoRequest_FailoverOn5xx(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	bad := testutil.NewNode().Fail(503)
	defer bad.Close()
	good := testutil.NewNode().Buffered("recovered")
	defer good.Close()
	backend.Nodes(bad.Entry("bad"), good.Entry("good"))

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	rh, err := eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.NoError(t, err)

	body, err := eng.ResponseBody(rh)
	assert.NoError(t, err)
	assert.Equal(t, []byte("recovered"), body)
	assert.Equal(t, 1, good.Calls())
}

func TestEngine_DoRequest_AbortOn4xx(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	node := testutil.NewNode().Fail(400)
	defer node.Close()
	backend.Nodes(node.Entry("node-1"))

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	_, err = eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.Error(t, err)
	assert.True(t, core.IsRequest(err))
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "scripted node failure")
	assert.Equal(t, 1, node.Calls())
}

func TestEngine_DoRequest_AllNodesFail(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	n1 := testutil.NewNode().Fail(500)
	defer n1.Close()
	n2 := testutil.NewNode().Fail(502)
	defer n2.Close()
	backend.Nodes(n1.Entry("n1"), n2.Entry("n2"))

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	_, err = eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.Error(t, err)
	assert.True(t, core.IsRequest(err))
	assert.Contains(t, err.Error(), "candidate nodes failed")
	assert.Equal(t, 1, n1.Calls())
	assert.Equal(t, 1, n2.Calls())
}

func TestEngine_DoRequest_CandidateCap(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	nodes := make([]*testutil.Node, 5)
	for i := range nodes {
		nodes[i] = testutil.NewNode().Fail(500)
		defer nodes[i].Close()
		backend.AddNode(nodes[i].Entry("n" + string(rune('a'+i))))
	}

	eng := newTestEngine(backend)

	cfg := testClientConfig()
	cfg.MaxCandidateNodes = 2

	h, err := eng.ClientCreate(context.Background(), cfg)
	assert.NoError(t, err)

	_, err = eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 candidate nodes failed")

	total := 0
	for _, n := range nodes {
		total += n.Calls()
	}
	assert.Equal(t, 2, total)
}

// -------------------- Node Selection Tests --------------------

func TestEngine_DoRequest_NoNodes(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	_, err = eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.Error(t, err)
	assert.True(t, core.IsRequest(err))
	assert.Contains(t, err.Error(), "no nodes available")
}

func TestEngine_DoRequest_NoTagMatch(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	node := testutil.NewNode()
	defer node.Close()
	backend.Nodes(node.Entry("node-1", "cpu"))

	eng := newTestEngine(backend)

	cfg := testClientConfig()
	cfg.DefaultNodeTags = []string{"gpu"}

	h, err := eng.ClientCreate(context.Background(), cfg)
	assert.NoError(t, err)

	_, err = eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.Error(t, err)
	assert.True(t, core.IsRequest(err))
	assert.Contains(t, err.Error(), "match tags")
	assert.Equal(t, 0, node.Calls())
}

func TestEngine_DoRequest_TagFiltering(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	gpu := testutil.NewNode().Buffered("gpu answer")
	defer gpu.Close()
	cpu := testutil.NewNode().Buffered("cpu answer")
	defer cpu.Close()
	backend.Nodes(gpu.Entry("gpu-node", "gpu", "eu"), cpu.Entry("cpu-node", "cpu"))

	eng := newTestEngine(backend)

	cfg := testClientConfig()
	cfg.DefaultNodeTags = []string{"gpu"}

	h, err := eng.ClientCreate(context.Background(), cfg)
	assert.NoError(t, err)

	for i := 0; i < 3; i++ {
		rh, err := eng.ClientDoRequest(context.Background(), h, []byte("payload"))
		assert.NoError(t, err)
		body, err := eng.ResponseBody(rh)
		assert.NoError(t, err)
		assert.Equal(t, []byte("gpu answer"), body)
	}

	assert.Equal(t, 3, gpu.Calls())
	assert.Equal(t, 0, cpu.Calls())
}

func TestEngine_DoRequest_NodeDirectoryCache(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	node := testutil.NewNode().Buffered("ok")
	defer node.Close()
	backend.Nodes(node.Entry("node-1"))

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := eng.ClientDoRequest(context.Background(), h, []byte("payload"))
		assert.NoError(t, err)
	}

	// The directory is fetched once and served from cache afterwards
	assert.Equal(t, 1, backend.NodesCalls())
}

func TestEngine_DoRequest_StaleDirectoryOnRefreshFailure(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	node := testutil.NewNode().Buffered("ok")
	defer node.Close()
	backend.Nodes(node.Entry("node-1"))

	// Zero refresh interval forces a refetch on every dispatch
	eng := newTestEngine(backend, WithConfig(Config{
		BackendURL:          backend.URL(),
		DispatchTimeout:     5 * time.Second,
		NodeRefreshInterval: 0,
	}))

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	_, err = eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.NoError(t, err)

	backend.FailNodes(500)

	// The stale directory keeps dispatches alive through control plane trouble
	rh, err := eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.NoError(t, err)
	assert.True(t, rh.IsValid())
	assert.Equal(t, 2, node.Calls())
}

// -------------------- Credits Tests --------------------

func TestEngine_DoRequest_CreditsSpentHeader(t *testing.T) {
	backend := testutil.NewBackend().PerRequest(50)
	defer backend.Close()

	node := testutil.NewNode().Buffered("ok").SpendCredits(75)
	defer node.Close()
	backend.Nodes(node.Entry("node-1"))

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	rh, err := eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.NoError(t, err)

	var md map[string]interface{}
	metadata, err := eng.ResponseMetadata(rh)
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(metadata, &md))
	assert.Equal(t, float64(75), md["credits_spent"])
}

func TestEngine_DoRequest_WalletDebit(t *testing.T) {
	backend := testutil.NewBackend().Balance(1000).PerRequest(50)
	defer backend.Close()

	node := testutil.NewNode().Buffered("ok")
	defer node.Close()
	backend.Nodes(node.Entry("node-1"))

	var estimates []int64
	cm := NewCallbackManager()
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeDispatch, func(ctx context.Context, cc *CallbackContext) error {
		estimates = append(estimates, cc.CreditsRemaining)
		return nil
	}))

	eng := newTestEngine(backend, WithCallbacks(cm))

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := eng.ClientDoRequest(context.Background(), h, []byte("payload"))
		assert.NoError(t, err)
	}

	// Each completed dispatch debits the local estimate by the default amount
	assert.Equal(t, []int64{1000, 950, 900}, estimates)
}

// -------------------- Callback Tests --------------------

func TestEngine_DoRequest_CallbackVeto(t *testing.T) {
	backend := testutil.NewBackend().Balance(10)
	defer backend.Close()

	node := testutil.NewNode().Buffered("ok")
	defer node.Close()
	backend.Nodes(node.Entry("node-1"))

	cm := NewCallbackManager()
	cm.RegisterCallback(NewCreditGuardCallback(100))

	eng := newTestEngine(backend, WithCallbacks(cm))

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	_, err = eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.Error(t, err)
	assert.True(t, core.IsRequest(err))
	assert.Contains(t, err.Error(), "dispatch rejected by callback")
	assert.Equal(t, 0, node.Calls())
}

func TestEngine_DoRequest_AfterDispatchCallback(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	node := testutil.NewNode().Buffered("ok")
	defer node.Close()
	backend.Nodes(node.Entry("node-1"))

	var gotNode string
	var gotResponse core.ResponseHandle
	cm := NewCallbackManager()
	cm.RegisterCallback(NewFunctionCallback(CallbackAfterDispatch, func(ctx context.Context, cc *CallbackContext) error {
		gotNode = cc.Node
		gotResponse = cc.Response
		return nil
	}))

	eng := newTestEngine(backend, WithCallbacks(cm))

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	rh, err := eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.NoError(t, err)
	assert.Equal(t, "node-1", gotNode)
	assert.Equal(t, rh, gotResponse)
}

// -------------------- Bounds Tests --------------------

func TestEngine_DoRequest_DestroyedClient(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)
	assert.NoError(t, eng.ClientDestroy(h))

	_, err = eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.True(t, core.IsInvalidHandle(err))
}

func TestEngine_DoRequest_CancelledContext(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	node := testutil.NewNode().Buffered("ok")
	defer node.Close()
	backend.Nodes(node.Entry("node-1"))

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = eng.ClientDoRequest(ctx, h, []byte("payload"))
	assert.Error(t, err)
	assert.True(t, core.IsRequest(err))
}

func TestEngine_DoRequest_DispatchTimeout(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	node := testutil.NewNode().Buffered("late").Delay(300 * time.Millisecond)
	defer node.Close()
	backend.Nodes(node.Entry("slow"))

	eng := newTestEngine(backend, WithConfig(Config{
		BackendURL:          backend.URL(),
		DispatchTimeout:     30 * time.Millisecond,
		NodeRefreshInterval: time.Minute,
	}))

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	start := time.Now()
	_, err = eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.Error(t, err)
	assert.True(t, core.IsRequest(err))
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestEngine_DoRequest_Non2xxBodyIsBounded(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	node := testutil.NewNode().Fail(http.StatusServiceUnavailable)
	defer node.Close()
	backend.Nodes(node.Entry("node-1"))

	eng := newTestEngine(backend)

	h, err := eng.ClientCreate(context.Background(), testClientConfig())
	assert.NoError(t, err)

	_, err = eng.ClientDoRequest(context.Background(), h, []byte("payload"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
