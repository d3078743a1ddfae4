// Package core provides the foundational domain types, interfaces and error
// taxonomy used by confsec. It defines the core abstractions for:
//
//   - Handles (opaque, process-local identifiers for engine-owned resources)
//   - ClientConfig (validated construction parameters for a client)
//   - Engine (the handle-keyed operation surface every frontend builds on)
//   - Error / ErrorKind (the classified failure contract of the boundary)
//
// The package intentionally keeps implementation concerns (node selection,
// wallet accounting, transport, streaming decode) out of scope, exposing a
// small interface so alternative engines and test doubles can be substituted.
// All exported identifiers include concise documentation to aid
// discoverability and external consumption.
package core
