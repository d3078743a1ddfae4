// Package engine implements the resource-owning core of the confsec client.
//
// The Engine is the single owner of every client, response and stream
// resource. Callers never touch those resources directly; they hold opaque
// handles and drive the engine through the handle-keyed operations defined by
// core.Engine. The public surfaces (the capi boundary and the confsec
// wrapper types) are thin layers over this package.
//
// # Core Responsibilities
//
// Resource Table:
//   - Allocates opaque non-zero handles from one monotonically increasing
//     counter, so a destroyed handle value is never reissued
//   - Tracks parent/child links (client -> responses -> streams) and eagerly
//     invalidates descendants when an ancestor is destroyed
//   - Reports unknown, destroyed or foreign handles as invalid handle errors
//
// Request Routing:
//   - Maintains a cached node directory per client, refreshed from the
//     backend control plane
//   - Filters candidates by the client's default node tags, caps the
//     candidate set and randomizes its order
//   - Fails over across candidates on transport errors and 5xx responses
//
// Wallet Accounting:
//   - Validates credentials at client creation by fetching the wallet
//   - Keeps a local snapshot (balance, reservation, per-request credit
//     amount) and debits it as dispatches complete
//
// Delivery Modes:
//   - Buffered responses are read to completion during dispatch
//   - Streaming responses return at header time; their bodies are consumed
//     chunk by chunk through a stream cursor backed by an SSE decoder
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────┐
//	│              capi boundary / confsec wrapper            │
//	├─────────────────────────────────────────────────────────┤
//	│                      Engine (core.Engine)               │
//	│  ┌─────────────┐ ┌─────────────┐ ┌─────────────────┐    │
//	│  │  Resource   │ │  Dispatch   │ │    Callback     │    │
//	│  │   Table     │ │  Pipeline   │ │    Manager      │    │
//	│  └─────────────┘ └─────────────┘ └─────────────────┘    │
//	├─────────────────────────────────────────────────────────┤
//	│  ┌─────────────┐ ┌─────────────┐ ┌─────────────────┐    │
//	│  │   Wallet    │ │    Node     │ │  SSE Stream     │    │
//	│  │  Snapshot   │ │  Directory  │ │    Cursors      │    │
//	│  └─────────────┘ └─────────────┘ └─────────────────┘    │
//	├─────────────────────────────────────────────────────────┤
//	│        Backend control plane        Compute nodes       │
//	│        (wallet, node listing)       (payload dispatch)  │
//	└─────────────────────────────────────────────────────────┘
//
// # Lifecycle Rules
//
// Destroy operations release a resource exactly once; destroying the same
// handle twice is an invalid handle error, not a no-op. Destroying a client
// invalidates the handles of its live responses and streams and cancels
// their in-flight bodies. Destroying a response likewise invalidates its
// stream. Streams are forward-only cursors: exhaustion is a sticky success
// outcome, while a mid-stream transport failure is a sticky stream error.
//
// # Concurrency Model
//
// The resource table is guarded by a single RWMutex held only for short,
// non-blocking sections. Network work (backend refreshes, dispatches, chunk
// reads) happens outside the table lock; after a dispatch completes, the
// client's liveness is re-checked before the response is registered so that
// a concurrent ClientDestroy wins. Per-stream reads are serialized by a
// per-cursor mutex. Distinct handles can be used from distinct goroutines
// freely; sharing one handle across goroutines requires external
// serialization, as with most cursors.
package engine
