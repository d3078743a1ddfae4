package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/confsec/core"
)

// Wire headers exchanged with compute nodes.
const (
	headerRequestID    = "X-Confsec-Request-Id"
	headerCredits      = "X-Confsec-Credits"
	headerCreditsSpent = "X-Confsec-Credits-Spent"
)

// responseMetadata is the engine-assembled routing record attached to every
// response. Callers receive it serialized and treat it as opaque.
type responseMetadata struct {
	RequestID    string `json:"request_id"`
	NodeID       string `json:"node_id"`
	NodeURL      string `json:"node_url"`
	Status       int    `json:"status"`
	ContentType  string `json:"content_type"`
	CreditsSpent int64  `json:"credits_spent"`
	Streaming    bool   `json:"streaming"`
}

// dispatchResult is one successful node exchange. Buffered exchanges carry
// the complete body; streaming exchanges carry the still-open HTTP response
// and the cancel func that releases its body context.
type dispatchResult struct {
	streaming   bool
	body        []byte
	resp        *http.Response
	cancel      context.CancelFunc
	status      int
	contentType string
	header      http.Header
}

// ClientDoRequest dispatches one opaque payload for the client.
//
// Pipeline:
//  1. Run before-dispatch callbacks (a callback error vetoes the dispatch)
//  2. Select candidate nodes (tag filter, shuffle, MaxCandidateNodes cap)
//  3. Attempt candidates in order, failing over on transport errors and
//     5xx responses; a 4xx response aborts immediately with the node's
//     message
//  4. Decide the delivery mode from the response Content-Type: an event
//     stream response returns at header time, anything else is read to
//     completion as a buffered body
//  5. Assemble routing metadata, debit the wallet snapshot and register
//     the response resource
//
// The payload is treated as opaque bytes; a zero-length payload is
// dispatched as such. The caller context governs candidate selection, the
// wait for response headers and buffered body downloads. Streaming bodies
// are deliberately decoupled from it so a finished DoRequest context cannot
// kill a live stream; they end when the stream or response is destroyed.
func (e *Engine) ClientDoRequest(ctx context.Context, h core.ClientHandle, payload []byte) (core.ResponseHandle, error) {
	cs, err := e.lookupClient(h)
	if err != nil {
		return 0, err
	}

	requestID := uuid.NewString()

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeDispatch, &CallbackContext{
		Client:           h,
		RequestID:        requestID,
		PayloadSize:      len(payload),
		CreditsRemaining: cs.wallet.remaining(),
	}); err != nil {
		return 0, core.WrapError(core.KindRequest, "dispatch rejected by callback", err)
	}

	if over := cs.flight.enter(); over {
		e.logger.Debug("engine dispatches above concurrency target handle=%s in_flight=%d", h, cs.flight.inFlight())
	}
	defer cs.flight.exit()

	start := time.Now()

	candidates, err := e.candidateNodes(ctx, h, cs)
	if err != nil {
		return 0, err
	}

	credits := cs.wallet.defaultCredits()

	var (
		res      *dispatchResult
		selected nodeInfo
		lastErr  error
	)

	for _, node := range candidates {
		r, retryable, attemptErr := e.attemptDispatch(ctx, node, payload, requestID, credits)
		if attemptErr == nil {
			res, selected = r, node
			break
		}

		lastErr = attemptErr
		e.logger.Debug("engine dispatch attempt failed node=%s retryable=%t err=%v", node.ID, retryable, attemptErr)

		if !retryable {
			return 0, attemptErr
		}
		if ctx.Err() != nil {
			break
		}
	}

	if res == nil {
		return 0, core.WrapError(core.KindRequest, fmt.Sprintf("all %d candidate nodes failed", len(candidates)), lastErr)
	}

	if v := res.header.Get(headerCreditsSpent); v != "" {
		if parsed, parseErr := strconv.ParseInt(v, 10, 64); parseErr == nil {
			credits = parsed
		}
	}

	md := responseMetadata{
		RequestID:    requestID,
		NodeID:       selected.ID,
		NodeURL:      selected.URL,
		Status:       res.status,
		ContentType:  res.contentType,
		CreditsSpent: credits,
		Streaming:    res.streaming,
	}

	metadata, err := json.Marshal(md)
	if err != nil {
		res.discard()
		return 0, core.WrapError(core.KindInternal, "encoding response metadata", err)
	}

	rs := &responseState{
		client:    h,
		streaming: res.streaming,
		metadata:  metadata,
		body:      res.body,
		httpResp:  res.resp,
		cancel:    res.cancel,
	}

	// Register under the table lock, re-checking that the client survived
	// the network exchange; a concurrent ClientDestroy wins.
	e.mu.Lock()
	if _, ok := e.clients[h]; !ok {
		e.mu.Unlock()
		res.discard()
		return 0, core.NewError(core.KindInvalidHandle, "client destroyed during request dispatch")
	}
	rh := core.ResponseHandle(e.nextHandleLocked())
	e.responses[rh] = rs
	cs.responses[rh] = struct{}{}
	e.mu.Unlock()

	cs.wallet.debit(md.CreditsSpent)

	e.executeCallbacks(ctx, CallbackAfterDispatch, &CallbackContext{
		Client:    h,
		Response:  rh,
		RequestID: requestID,
		Node:      selected.ID,
	})

	e.logger.Debug("engine dispatched request handle=%s request_id=%s node=%s streaming=%t duration=%s",
		h, requestID, selected.ID, res.streaming, time.Since(start))

	return rh, nil
}

// attemptDispatch performs one exchange with one node. The returned bool
// reports whether a failure may be retried on another candidate.
//
// The attempt is bounded by the caller context and Config.DispatchTimeout,
// enforced through a watcher instead of the request context itself so that
// a streaming body handed back to the caller is not tied to either bound.
func (e *Engine) attemptDispatch(ctx context.Context, node nodeInfo, payload []byte, requestID string, credits int64) (*dispatchResult, bool, error) {
	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, strings.TrimSuffix(node.URL, "/")+"/v1/requests", bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, false, core.WrapError(core.KindRequest, fmt.Sprintf("building request for node %s", node.ID), err)
	}

	req.ContentLength = int64(len(payload))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set(headerCredits, strconv.FormatInt(credits, 10))
	if e.config.UserAgent != "" {
		req.Header.Set("User-Agent", e.config.UserAgent)
	}

	var timeoutCh <-chan time.Time
	if e.config.DispatchTimeout > 0 {
		timer := time.NewTimer(e.config.DispatchTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	attemptDone := make(chan struct{})
	defer close(attemptDone)

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-timeoutCh:
			cancel()
		case <-attemptDone:
		}
	}()

	resp, err := e.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, true, core.WrapError(core.KindRequest, fmt.Sprintf("dispatch to node %s failed", node.ID), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		cancel()

		retryable := resp.StatusCode >= 500
		return nil, retryable, core.Errorf(core.KindRequest, "node %s returned %d: %s", node.ID, resp.StatusCode, errorMessage(body))
	}

	contentType := resp.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "text/event-stream") {
		return &dispatchResult{
			streaming:   true,
			resp:        resp,
			cancel:      cancel,
			status:      resp.StatusCode,
			contentType: contentType,
			header:      resp.Header,
		}, false, nil
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	cancel()
	if err != nil {
		return nil, true, core.WrapError(core.KindRequest, fmt.Sprintf("reading buffered response from node %s", node.ID), err)
	}

	return &dispatchResult{
		body:        body,
		status:      resp.StatusCode,
		contentType: contentType,
		header:      resp.Header,
	}, false, nil
}

// discard releases whatever transport resources the result still holds.
func (r *dispatchResult) discard() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.resp != nil && r.resp.Body != nil {
		_ = r.resp.Body.Close()
	}
}
