package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pair-run/pair/pkg/types"
)

// NavigatorCommandFunc receives a structured command decoded from one of
// the Navigator's MCP tool calls. It returns the text handed back to the
// Navigator session as the tool's result, or an error to surface as an MCP
// tool error.
type NavigatorCommandFunc func(ctx context.Context, cmd types.NavigatorCommand) (string, error)

// DriverCommandFunc is the Driver-side counterpart of NavigatorCommandFunc.
type DriverCommandFunc func(ctx context.Context, cmd types.DriverCommand) (string, error)

// NewNavigatorServer builds the MCP server exposing navigatorApprove,
// navigatorDeny, navigatorCodeReview, and navigatorComplete. Every call is
// decoded into a types.NavigatorCommand and handed to onCommand.
func NewNavigatorServer(onCommand NavigatorCommandFunc) *server.MCPServer {
	s := server.NewMCPServer(
		"pair-navigator",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(mcp.NewTool("navigatorApprove",
		mcp.WithDescription("Approve the indicated pending permission request"),
		mcp.WithString("requestId", mcp.Description("id of the permission request to approve")),
		mcp.WithString("comment", mcp.Description("optional note attached to the approval")),
	), navigatorHandler(onCommand, types.NavigatorApprove))

	s.AddTool(mcp.NewTool("navigatorDeny",
		mcp.WithDescription("Deny the indicated pending permission request"),
		mcp.WithString("requestId", mcp.Description("id of the permission request to deny")),
		mcp.WithString("comment", mcp.Required(), mcp.Description("reason the request is denied")),
	), navigatorHandler(onCommand, types.NavigatorDeny))

	s.AddTool(mcp.NewTool("navigatorCodeReview",
		mcp.WithDescription("Deliver the final review verdict for the completed implementation"),
		mcp.WithString("comment", mcp.Required(), mcp.Description("review notes")),
		mcp.WithBoolean("pass", mcp.Required(), mcp.Description("true if the implementation passes review")),
	), navigatorHandler(onCommand, types.NavigatorCodeReview))

	s.AddTool(mcp.NewTool("navigatorComplete",
		mcp.WithDescription("Equivalent to a passing code review; ends the loop successfully"),
		mcp.WithString("summary", mcp.Required(), mcp.Description("summary of the completed work")),
	), navigatorHandler(onCommand, types.NavigatorComplete))

	return s
}

// NewDriverServer builds the MCP server exposing driverRequestReview and
// driverRequestGuidance.
func NewDriverServer(onCommand DriverCommandFunc) *server.MCPServer {
	s := server.NewMCPServer(
		"pair-driver",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(mcp.NewTool("driverRequestReview",
		mcp.WithDescription("Declare the implementation ready for Navigator review"),
		mcp.WithString("context", mcp.Description("optional summary of what changed")),
	), driverHandler(onCommand, types.DriverRequestReview))

	s.AddTool(mcp.NewTool("driverRequestGuidance",
		mcp.WithDescription("Ask the Navigator for help when stuck"),
		mcp.WithString("context", mcp.Required(), mcp.Description("what the Driver is stuck on")),
	), driverHandler(onCommand, types.DriverRequestGuidance))

	return s
}

func navigatorHandler(onCommand NavigatorCommandFunc, kind types.NavigatorCommandKind) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		cmd := types.NavigatorCommand{
			Kind:      kind,
			RequestID: stringArg(args, "requestId"),
			Comment:   stringArg(args, "comment"),
			Pass:      boolArg(args, "pass"),
			Summary:   stringArg(args, "summary"),
		}

		if onCommand == nil {
			return mcp.NewToolResultError("navigator command handler not configured"), nil
		}

		result, err := onCommand(ctx, cmd)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}

func driverHandler(onCommand DriverCommandFunc, kind types.DriverCommandKind) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		cmd := types.DriverCommand{
			Kind:    kind,
			Context: stringArg(args, "context"),
		}

		if onCommand == nil {
			return mcp.NewToolResultError("driver command handler not configured"), nil
		}

		result, err := onCommand(ctx, cmd)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}

// ServeHTTP starts s on addr using the streamable HTTP transport and blocks
// until ctx is cancelled or the server fails. The returned error is nil on
// a clean shutdown triggered by ctx.
func ServeHTTP(ctx context.Context, s *server.MCPServer, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(addr)
	}()

	select {
	case <-ctx.Done():
		return httpServer.Shutdown(context.Background())
	case err := <-errCh:
		return fmt.Errorf("mcp server on %s: %w", addr, err)
	}
}
