// Package agentprovider abstracts over external LLM coding-agent backends.
//
// A Session wraps one running agent conversation (Architect, Driver, or
// Navigator) behind a transport-agnostic contract: send a prompt, consume
// a stream of typed messages, interrupt, end. Two backends implement it:
//
//   - claudecode: streams the Anthropic Messages API directly via
//     github.com/anthropics/anthropic-sdk-go.
//   - opencode: drives a running `opencode serve` instance's session and
//     event API via github.com/sst/opencode-sdk-go.
//
// The orchestrator never imports either SDK directly; it only depends on
// the Session interface and the Registry that constructs backends by
// provider identifier.
package agentprovider
