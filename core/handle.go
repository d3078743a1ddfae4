package core

import "strconv"

// Handles are opaque, process-local identifiers for resources owned by an
// Engine. They carry no pointer semantics: holding a handle does not keep the
// resource alive, and a destroyed handle never becomes valid again. The zero
// value of every handle kind means "no resource" and is never allocated.

// ClientHandle identifies a client resource.
type ClientHandle uint64

// ResponseHandle identifies a response resource.
type ResponseHandle uint64

// StreamHandle identifies a stream cursor resource.
type StreamHandle uint64

// IsValid reports whether the handle names a resource at all. A valid handle
// may still refer to an already destroyed resource.
func (h ClientHandle) IsValid() bool { return h != 0 }

// IsValid reports whether the handle names a resource at all.
func (h ResponseHandle) IsValid() bool { return h != 0 }

// IsValid reports whether the handle names a resource at all.
func (h StreamHandle) IsValid() bool { return h != 0 }

// String returns a log-friendly rendering such as "client#42".
func (h ClientHandle) String() string { return "client#" + strconv.FormatUint(uint64(h), 10) }

// String returns a log-friendly rendering such as "response#42".
func (h ResponseHandle) String() string { return "response#" + strconv.FormatUint(uint64(h), 10) }

// String returns a log-friendly rendering such as "stream#42".
func (h StreamHandle) String() string { return "stream#" + strconv.FormatUint(uint64(h), 10) }
