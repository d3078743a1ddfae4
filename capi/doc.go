// Package capi exposes the flat, handle-based boundary surface of confsec.
//
// Every operation is a synchronous call carrying explicit arguments and
// returning an explicit error; resources are referenced by opaque non-zero
// handles and never by pointers. The package is the stable seam for
// embedders and for bindings into other runtimes: richer Go callers should
// prefer the confsec root package, which wraps these entry points in
// ergonomic types.
//
// Key components:
//   - Runtime: binds the entry points to a concrete engine
//   - Default: the process-wide Runtime over the default engine
//   - Package-level functions: mirror Runtime methods on Default()
//
// The boundary checks the engine contract on every call: an engine that
// reports success together with an impossible result (a zero handle, a nil
// payload) is surfaced as an internal error instead of handing the caller
// an unusable value.
package capi
