package core

// ClientConfig carries the construction parameters for a client resource.
//
// Contract:
//   - APIKey is required and never logged by conforming engines
//   - ConcurrentRequestsTarget and MaxCandidateNodes must be positive
//   - DefaultNodeTags is an ordered sequence; duplicates are meaningful
//   - Environment distinguishes "unset" (nil) from the empty string
type ClientConfig struct {
	// APIKey authenticates the client against the confsec backend.
	APIKey string

	// ConcurrentRequestsTarget sizes per-client resources such as the
	// wallet credit reservation. It is a sizing target, not a hard cap on
	// concurrent dispatches.
	ConcurrentRequestsTarget int

	// MaxCandidateNodes caps how many routing candidates a single dispatch
	// may consider.
	MaxCandidateNodes int

	// DefaultNodeTags filters candidate nodes. Order and duplicates are
	// preserved exactly as configured. May be empty.
	DefaultNodeTags []string

	// Environment optionally pins the client to a named backend
	// environment. nil means unset; the empty string is a valid name.
	Environment *string
}

// Validate checks the construction parameters and returns a configuration
// error describing the first violation found.
func (c ClientConfig) Validate() error {
	if c.APIKey == "" {
		return NewError(KindConfiguration, "api key must not be empty")
	}

	if c.ConcurrentRequestsTarget <= 0 {
		return Errorf(KindConfiguration, "concurrent requests target must be positive, got %d", c.ConcurrentRequestsTarget)
	}

	if c.MaxCandidateNodes <= 0 {
		return Errorf(KindConfiguration, "max candidate nodes must be positive, got %d", c.MaxCandidateNodes)
	}

	return nil
}

// Clone returns a deep copy of the config safe for independent mutation.
func (c ClientConfig) Clone() ClientConfig {
	clone := c
	clone.DefaultNodeTags = append([]string(nil), c.DefaultNodeTags...)

	if c.Environment != nil {
		env := *c.Environment
		clone.Environment = &env
	}

	return clone
}
