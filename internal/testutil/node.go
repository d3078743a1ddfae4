package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// Node is a scriptable stand-in for a compute node. It answers dispatches
// with a buffered body or a server-sent event script and records the
// payloads and headers it received. Example:
//
//	node := NewNode().Streaming("alpha", "beta")
//	defer node.Close()
//	backend.AddNode(node.Entry("node-1", "gpu"))
type Node struct {
	mu sync.Mutex

	status      int
	contentType string
	body        []byte
	chunks      []string
	sendDone    bool
	abortAfter  bool
	spent       int64
	delay       time.Duration
	failMessage string

	calls       int
	lastPayload []byte
	lastHeader  http.Header

	server *httptest.Server
}

// NewNode starts a compute node double that answers dispatches with an empty
// buffered JSON body. Callers must Close it.
func NewNode() *Node {
	n := &Node{
		status:      http.StatusOK,
		contentType: "application/json",
		body:        []byte("{}"),
		sendDone:    true,
		failMessage: "scripted node failure",
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.handle))
	return n
}

// URL returns the base URL of the double.
func (n *Node) URL() string { return n.server.URL }

// Close shuts the double down.
func (n *Node) Close() { n.server.Close() }

// Entry returns the directory entry for registering this double with a
// Backend.
func (n *Node) Entry(id string, tags ...string) NodeEntry {
	return NodeEntry{ID: id, URL: n.server.URL, Tags: tags}
}

// Buffered scripts a buffered response with the given body (chainable).
func (n *Node) Buffered(body string) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.body = []byte(body)
	n.chunks = nil
	n.status = http.StatusOK
	return n
}

// ContentType overrides the buffered response content type (chainable).
func (n *Node) ContentType(ct string) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contentType = ct
	return n
}

// Streaming scripts an event-stream response delivering the given chunks
// followed by the [DONE] marker (chainable).
func (n *Node) Streaming(chunks ...string) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chunks = append([]string{}, chunks...)
	n.sendDone = true
	n.abortAfter = false
	n.status = http.StatusOK
	return n
}

// OmitDone ends the scripted stream without the [DONE] marker, so the client
// observes a clean end of stream (chainable).
func (n *Node) OmitDone() *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sendDone = false
	return n
}

// AbortMidStream drops the connection after the scripted chunks instead of
// ending the stream, so the client observes a transport failure (chainable).
func (n *Node) AbortMidStream() *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.abortAfter = true
	n.sendDone = false
	return n
}

// Fail scripts an error status for subsequent dispatches (chainable).
func (n *Node) Fail(status int) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = status
	return n
}

// SpendCredits reports the given amount via the credits-spent response
// header (chainable).
func (n *Node) SpendCredits(v int64) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.spent = v
	return n
}

// Delay makes the double sleep before answering (chainable). Keep it short;
// Close waits for in-flight handlers.
func (n *Node) Delay(d time.Duration) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delay = d
	return n
}

// Calls reports how many dispatches the double served.
func (n *Node) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// LastPayload returns the payload of the most recent dispatch.
func (n *Node) LastPayload() []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]byte(nil), n.lastPayload...)
}

// LastRequestHeader returns one header value from the most recent dispatch.
func (n *Node) LastRequestHeader(name string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastHeader == nil {
		return ""
	}
	return n.lastHeader.Get(name)
}

func (n *Node) handle(w http.ResponseWriter, r *http.Request) {
	payload, _ := io.ReadAll(r.Body)

	n.mu.Lock()
	n.calls++
	n.lastPayload = payload
	n.lastHeader = r.Header.Clone()
	status := n.status
	streaming := n.chunks != nil
	chunks := append([]string(nil), n.chunks...)
	body := append([]byte(nil), n.body...)
	contentType := n.contentType
	sendDone := n.sendDone
	abort := n.abortAfter
	spent := n.spent
	delay := n.delay
	failMessage := n.failMessage
	n.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if status < 200 || status >= 300 {
		writeError(w, status, failMessage)
		return
	}

	if spent > 0 {
		w.Header().Set("X-Confsec-Credits-Spent", strconv.FormatInt(spent, 10))
	}

	if streaming {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(status)
		flusher, _ := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if abort {
			panic(http.ErrAbortHandler)
		}
		if sendDone {
			fmt.Fprint(w, "data: [DONE]\n\n")
			if flusher != nil {
				flusher.Flush()
			}
		}
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
