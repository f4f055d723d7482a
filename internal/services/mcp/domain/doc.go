// Package domain maps escrow campaign operations onto MCP tools and resources.
//
// Handlers are thin: they parse tool input, forward the call to the escrow
// gRPC API on behalf of the named account, and render the reply. Every funds
// decision stays in the escrow service.
package domain
