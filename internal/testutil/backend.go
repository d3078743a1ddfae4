package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// NodeEntry describes one compute node advertised by the Backend double.
type NodeEntry struct {
	ID   string   `json:"id"`
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

// Backend is a scriptable stand-in for the confsec control plane. It serves
// the wallet and node directory endpoints and records the credentials and
// environment it saw. Example:
//
//	backend := NewBackend().Balance(5000).PerRequest(25)
//	defer backend.Close()
//
// Mutators are safe to call while the server is live, so tests can change
// behavior between requests (for example failing the node directory after a
// successful first fetch).
type Backend struct {
	mu sync.Mutex

	balance    int64
	reserved   int64
	perRequest int64
	currency   string
	nodes      []NodeEntry

	walletStatus int
	nodesStatus  int
	failMessage  string

	walletCalls int
	nodesCalls  int
	lastKey     string
	lastEnv     *string

	server *httptest.Server
}

// NewBackend starts a control plane double with a funded wallet and an empty
// node directory. Callers must Close it.
func NewBackend() *Backend {
	b := &Backend{
		balance:     100000,
		perRequest:  50,
		currency:    "credits",
		failMessage: "scripted failure",
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	return b
}

// URL returns the base URL of the double.
func (b *Backend) URL() string { return b.server.URL }

// Close shuts the double down.
func (b *Backend) Close() { b.server.Close() }

// Balance sets the advertised wallet balance (chainable).
func (b *Backend) Balance(v int64) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance = v
	return b
}

// Reserved sets the advertised reserved amount (chainable).
func (b *Backend) Reserved(v int64) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reserved = v
	return b
}

// PerRequest sets the advertised default credit amount per request (chainable).
func (b *Backend) PerRequest(v int64) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.perRequest = v
	return b
}

// Nodes replaces the advertised node directory (chainable).
func (b *Backend) Nodes(entries ...NodeEntry) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes = append([]NodeEntry{}, entries...)
	return b
}

// AddNode appends one entry to the advertised node directory (chainable).
func (b *Backend) AddNode(entry NodeEntry) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes = append(b.nodes, entry)
	return b
}

// FailWallet scripts a non-200 status for the wallet endpoint (chainable).
func (b *Backend) FailWallet(status int) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.walletStatus = status
	return b
}

// FailNodes scripts a non-200 status for the node directory endpoint (chainable).
func (b *Backend) FailNodes(status int) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodesStatus = status
	return b
}

// Recover clears any scripted endpoint failures (chainable).
func (b *Backend) Recover() *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.walletStatus = 0
	b.nodesStatus = 0
	return b
}

// WalletCalls reports how many wallet fetches the double served.
func (b *Backend) WalletCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.walletCalls
}

// NodesCalls reports how many node directory fetches the double served.
func (b *Backend) NodesCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nodesCalls
}

// LastAPIKey returns the bearer token of the most recent request.
func (b *Backend) LastAPIKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastKey
}

// LastEnvironment returns the environment query parameter of the most recent
// request, or nil when the parameter was absent.
func (b *Backend) LastEnvironment() *string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastEnv
}

func (b *Backend) handle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastKey = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if vals, ok := r.URL.Query()["environment"]; ok && len(vals) > 0 {
		v := vals[0]
		b.lastEnv = &v
	} else {
		b.lastEnv = nil
	}

	switch r.URL.Path {
	case "/v1/wallet":
		b.walletCalls++
		if b.walletStatus != 0 {
			writeError(w, b.walletStatus, b.failMessage)
			return
		}
		writeJSON(w, map[string]interface{}{
			"balance":                           b.balance,
			"reserved":                          b.reserved,
			"default_credit_amount_per_request": b.perRequest,
			"currency":                          b.currency,
		})
	case "/v1/nodes":
		b.nodesCalls++
		if b.nodesStatus != 0 {
			writeError(w, b.nodesStatus, b.failMessage)
			return
		}
		writeJSON(w, map[string]interface{}{"nodes": b.nodes})
	default:
		writeError(w, http.StatusNotFound, "unknown path "+r.URL.Path)
	}
}

func writeJSON(w http.ResponseWriter, doc interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
