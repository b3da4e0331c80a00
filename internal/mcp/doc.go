// Package mcp serves the fixed, six-tool Model Context Protocol vocabulary
// that the Driver and Navigator sessions use to hand structured decisions
// back to the orchestrator: navigatorApprove, navigatorDeny,
// navigatorCodeReview, navigatorComplete, driverRequestReview, and
// driverRequestGuidance.
//
// Each role gets its own *server.MCPServer built from github.com/mark3labs/mcp-go,
// served over streamable HTTP so that an agent session configured with a
// per-role MCP endpoint URL can reach exactly the tools its role is allowed
// to call. Tool handlers do no orchestration themselves; they parse
// arguments into a pkg/types command struct and hand it to the callback
// supplied at construction. No code in this module outside the tests
// constructs these servers or calls ServeHTTP.
package mcp
