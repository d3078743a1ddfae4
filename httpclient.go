package confsec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hupe1980/confsec/core"
)

// Transport is an http.RoundTripper that carries requests over a confsec
// Client instead of a direct connection.
//
// The request body travels as the opaque dispatch payload; method, URL and
// headers are not inspected, since routing is decided by the client's node
// selection. Buffered responses come back as ordinary JSON bodies.
// Streaming responses are re-framed as a server-sent event body (one
// "data:" event per chunk, terminated by "data: [DONE]"), which is the
// shape SSE-consuming SDK decoders expect.
//
// This is the integration point for HTTP-speaking API SDKs: point the SDK's
// HTTP client at a Transport and its requests ride the confidential
// dispatch pipeline unchanged. The SDK's base URL can be any placeholder.
//
// Example:
//
//	client, _ := confsec.New(ctx, apiKey)
//	oai := openai.NewClient(
//	    option.WithBaseURL("http://confsec"),
//	    option.WithHTTPClient(confsec.NewHTTPClient(client)),
//	)
type Transport struct {
	client *Client
}

// NewTransport creates a Transport dispatching through the given client.
func NewTransport(client *Client) *Transport {
	return &Transport{client: client}
}

// NewHTTPClient returns an *http.Client whose requests travel through the
// confsec dispatch pipeline.
func NewHTTPClient(client *Client) *http.Client {
	return &http.Client{Transport: NewTransport(client)}
}

// RoundTrip implements http.RoundTripper.
//
// Dispatch failures do not surface as transport errors; they come back as
// synthesized HTTP error responses (status by error kind, JSON error body)
// so SDK error handling takes its normal path.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var payload []byte
	if req.Body != nil {
		defer func() { _ = req.Body.Close() }()

		var err error
		payload, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
	}

	resp, err := t.client.DoRequest(req.Context(), payload)
	if err != nil {
		return errorResponse(req, err), nil
	}

	if resp.IsStreaming() {
		stream, err := resp.Stream()
		if err != nil {
			_ = resp.Close()
			return nil, err
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Proto:      "HTTP/1.1",
			ProtoMajor: 1,
			ProtoMinor: 1,
			Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:       &sseBody{resp: resp, stream: stream},
			Request:    req,
		}, nil
	}

	body, err := resp.Body()
	_ = resp.Close()
	if err != nil {
		return nil, err
	}

	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

// statusForKind maps boundary error kinds onto the HTTP statuses SDK error
// handling expects.
func statusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindConfiguration:
		return http.StatusUnauthorized
	case core.KindRequest:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse synthesizes an HTTP error response carrying the dispatch
// failure in the JSON error shape common to provider APIs.
func errorResponse(req *http.Request, err error) *http.Response {
	status := statusForKind(core.KindOf(err))

	doc, _ := json.Marshal(map[string]interface{}{
		"error": map[string]interface{}{
			"message": err.Error(),
			"type":    core.KindOf(err).String(),
		},
	})

	return &http.Response{
		StatusCode:    status,
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(doc)),
		ContentLength: int64(len(doc)),
		Request:       req,
	}
}

// sseBody re-frames a confsec chunk stream as a server-sent event body.
// Multi-line chunks become multiple "data:" lines of one event, the exact
// inverse of how SSE decoders join them back together.
type sseBody struct {
	resp   *Response
	stream *Stream
	buf    bytes.Buffer
	done   bool
}

// Read implements io.Reader, producing one SSE event per stream chunk and a
// terminal [DONE] event.
func (b *sseBody) Read(p []byte) (int, error) {
	for b.buf.Len() == 0 {
		if b.done {
			return 0, io.EOF
		}

		if b.stream.Next() {
			for _, line := range bytes.Split(b.stream.Chunk(), []byte("\n")) {
				b.buf.WriteString("data: ")
				b.buf.Write(line)
				b.buf.WriteString("\n")
			}
			b.buf.WriteString("\n")
			continue
		}

		if err := b.stream.Err(); err != nil {
			return 0, err
		}

		b.buf.WriteString("data: [DONE]\n\n")
		b.done = true
	}

	return b.buf.Read(p)
}

// Close tears down the stream cursor and its response.
func (b *sseBody) Close() error {
	serr := b.stream.Close()
	rerr := b.resp.Close()
	if serr != nil {
		return serr
	}
	return rerr
}
