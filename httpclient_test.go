package confsec

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/confsec/core"
	"github.com/hupe1980/confsec/engine"
	"github.com/hupe1980/confsec/internal/testutil"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
)

// -------------------- Buffered RoundTrip Tests --------------------

func TestTransport_Buffered(t *testing.T) {
	var gotPayload []byte
	eng := &core.MockEngine{
		ClientDoRequestFn: func(ctx context.Context, h core.ClientHandle, payload []byte) (core.ResponseHandle, error) {
			gotPayload = payload
			return 7, nil
		},
		ResponseIsStreamingFn: func(h core.ResponseHandle) (bool, error) { return false, nil },
		ResponseBodyFn:        func(h core.ResponseHandle) ([]byte, error) { return []byte(`{"id":"cmpl-1"}`), nil },
		ResponseDestroyFn:     func(h core.ResponseHandle) error { return nil },
	}

	client := newMockClient(t, eng)

	req, err := http.NewRequest(http.MethodPost, "http://confsec/v1/chat/completions", strings.NewReader(`{"model":"gpt-4o"}`))
	assert.NoError(t, err)

	resp, err := NewTransport(client).RoundTrip(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.Equal(t, `{"id":"cmpl-1"}`, string(body))

	// The request body rode through as the dispatch payload
	assert.Equal(t, `{"model":"gpt-4o"}`, string(gotPayload))
}

func TestTransport_NilRequestBody(t *testing.T) {
	var gotPayload []byte
	eng := &core.MockEngine{
		ClientDoRequestFn: func(ctx context.Context, h core.ClientHandle, payload []byte) (core.ResponseHandle, error) {
			gotPayload = payload
			return 7, nil
		},
		ResponseIsStreamingFn: func(h core.ResponseHandle) (bool, error) { return false, nil },
		ResponseBodyFn:        func(h core.ResponseHandle) ([]byte, error) { return []byte("{}"), nil },
		ResponseDestroyFn:     func(h core.ResponseHandle) error { return nil },
	}

	client := newMockClient(t, eng)

	req, err := http.NewRequest(http.MethodGet, "http://confsec/v1/models", nil)
	assert.NoError(t, err)

	resp, err := NewTransport(client).RoundTrip(req)
	assert.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, gotPayload)
}

// -------------------- Streaming RoundTrip Tests --------------------

func newStreamingMock(chunks [][]byte) (*core.MockEngine, *int, *int) {
	i := 0
	streamDestroys := 0
	responseDestroys := 0

	eng := &core.MockEngine{
		ClientDoRequestFn: func(ctx context.Context, h core.ClientHandle, payload []byte) (core.ResponseHandle, error) {
			return 2, nil
		},
		ResponseIsStreamingFn: func(h core.ResponseHandle) (bool, error) { return true, nil },
		ResponseStreamFn:      func(h core.ResponseHandle) (core.StreamHandle, error) { return 3, nil },
		StreamNextFn: func(h core.StreamHandle) ([]byte, bool, error) {
			if i >= len(chunks) {
				return nil, false, nil
			}
			c := chunks[i]
			i++
			return c, true, nil
		},
		StreamDestroyFn:   func(h core.StreamHandle) error { streamDestroys++; return nil },
		ResponseDestroyFn: func(h core.ResponseHandle) error { responseDestroys++; return nil },
	}

	return eng, &streamDestroys, &responseDestroys
}

func TestTransport_StreamingFraming(t *testing.T) {
	eng, _, _ := newStreamingMock([][]byte{[]byte("alpha"), []byte("beta")})
	client := newMockClient(t, eng)

	req, err := http.NewRequest(http.MethodPost, "http://confsec/v1/chat/completions", strings.NewReader("{}"))
	assert.NoError(t, err)

	resp, err := NewTransport(client).RoundTrip(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.Equal(t, "data: alpha\n\ndata: beta\n\ndata: [DONE]\n\n", string(body))
}

func TestTransport_StreamingMultiLineChunk(t *testing.T) {
	eng, _, _ := newStreamingMock([][]byte{[]byte("first\nsecond")})
	client := newMockClient(t, eng)

	req, err := http.NewRequest(http.MethodPost, "http://confsec/v1/chat/completions", strings.NewReader("{}"))
	assert.NoError(t, err)

	resp, err := NewTransport(client).RoundTrip(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)

	// One event, two data lines
	assert.Equal(t, "data: first\ndata: second\n\ndata: [DONE]\n\n", string(body))
}

func TestTransport_StreamingDecodesWithSSEDecoder(t *testing.T) {
	chunks := [][]byte{[]byte(`{"delta":"a"}`), []byte("line one\nline two"), []byte(`{"delta":"z"}`)}
	eng, _, _ := newStreamingMock(chunks)
	client := newMockClient(t, eng)

	req, err := http.NewRequest(http.MethodPost, "http://confsec/v1/chat/completions", strings.NewReader("{}"))
	assert.NoError(t, err)

	resp, err := NewTransport(client).RoundTrip(req)
	assert.NoError(t, err)

	// The framed body must survive a real SSE decoder round trip
	decoder := ssestream.NewDecoder(resp)
	var got [][]byte
	for decoder.Next() {
		got = append(got, append([]byte(nil), decoder.Event().Data...))
	}
	assert.NoError(t, decoder.Err())

	if assert.Len(t, got, len(chunks)+1) {
		assert.Equal(t, chunks, got[:len(chunks)])
		assert.Equal(t, []byte("[DONE]"), got[len(chunks)])
	}
}

func TestTransport_BodyCloseReleasesHandles(t *testing.T) {
	eng, streamDestroys, responseDestroys := newStreamingMock([][]byte{[]byte("alpha")})
	client := newMockClient(t, eng)

	req, err := http.NewRequest(http.MethodPost, "http://confsec/v1/chat/completions", strings.NewReader("{}"))
	assert.NoError(t, err)

	resp, err := NewTransport(client).RoundTrip(req)
	assert.NoError(t, err)

	assert.NoError(t, resp.Body.Close())
	assert.Equal(t, 1, *streamDestroys)
	assert.Equal(t, 1, *responseDestroys)
}

// -------------------- Error Synthesis Tests --------------------

func TestTransport_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "configuration maps to 401",
			err:        core.NewError(core.KindConfiguration, "validating credentials against backend"),
			wantStatus: http.StatusUnauthorized,
			wantType:   "configuration",
		},
		{
			name:       "request maps to 502",
			err:        core.NewError(core.KindRequest, "all 3 candidate nodes failed"),
			wantStatus: http.StatusBadGateway,
			wantType:   "request",
		},
		{
			name:       "internal maps to 500",
			err:        core.NewError(core.KindInternal, "engine state corrupt"),
			wantStatus: http.StatusInternalServerError,
			wantType:   "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &core.MockEngine{
				ClientDoRequestFn: func(ctx context.Context, h core.ClientHandle, payload []byte) (core.ResponseHandle, error) {
					return 0, tt.err
				},
			}
			client := newMockClient(t, eng)

			req, rerr := http.NewRequest(http.MethodPost, "http://confsec/v1/chat/completions", strings.NewReader("{}"))
			assert.NoError(t, rerr)

			resp, rerr := NewTransport(client).RoundTrip(req)
			assert.NoError(t, rerr)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var doc struct {
				Error struct {
					Message string `json:"message"`
					Type    string `json:"type"`
				} `json:"error"`
			}
			assert.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
			assert.Equal(t, tt.err.Error(), doc.Error.Message)
			assert.Equal(t, tt.wantType, doc.Error.Type)
		})
	}
}

// -------------------- End To End Tests --------------------

func TestTransport_EndToEnd(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()

	node := testutil.NewNode().Streaming(`{"n":1}`, `{"n":2}`)
	defer node.Close()
	backend.Nodes(node.Entry("n1"))

	client, err := New(context.Background(), "sk-live",
		WithEngineConfig(engine.Config{
			BackendURL:          backend.URL(),
			DispatchTimeout:     5 * time.Second,
			NodeRefreshInterval: time.Minute,
		}),
	)
	assert.NoError(t, err)
	defer func() { _ = client.Close() }()

	httpClient := NewHTTPClient(client)

	resp, err := httpClient.Post("http://confsec/v1/chat/completions", "application/json", strings.NewReader("{}"))
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.Equal(t, "data: {\"n\":1}\n\ndata: {\"n\":2}\n\ndata: [DONE]\n\n", string(body))
}
