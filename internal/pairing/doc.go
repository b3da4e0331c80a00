// Package pairing implements the Driver and Navigator controllers: thin
// wrappers around a long-running internal/agentprovider.Session that
// translate its raw message stream into the structured events the
// implementation loop consumes — buffered transcript text, DriverCommands,
// and batches of NavigatorCommands — per spec.md §4.5.
package pairing
