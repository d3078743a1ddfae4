// Package testutil contains scriptable HTTP doubles used across tests to
// stand in for the confsec control plane and for compute nodes. The doubles
// speak the same wire surface the engine does (wallet and node directory
// endpoints, the dispatch endpoint in buffered and event-stream form) and
// record what they saw so tests can assert on it. They are intentionally
// minimal and not intended for production usage.
package testutil
