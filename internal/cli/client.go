package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultEndpoint is where "integctl serve" listens by default.
const DefaultEndpoint = "http://localhost:8090"

// ErrNotConnected is returned by calls on a client without a session.
var ErrNotConnected = errors.New("client not connected")

// CLIClient is a small MCP client for the tools of a running integctl server.
type CLIClient struct {
	endpoint string
	client   *client.Client
	timeout  time.Duration
}

// NewCLIClient creates a client for the server at endpoint, the base URL
// of the server without the /sse path.
func NewCLIClient(endpoint string) *CLIClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &CLIClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		timeout:  30 * time.Second,
	}
}

// Endpoint returns the base URL of the server.
func (c *CLIClient) Endpoint() string {
	return c.endpoint
}

// Connect opens the SSE stream and performs the MCP handshake. ctx must
// stay alive for as long as the client is used.
func (c *CLIClient) Connect(ctx context.Context) error {
	sseClient, err := client.NewSSEMCPClient(c.endpoint + "/sse")
	if err != nil {
		return fmt.Errorf("failed to create SSE client: %w", err)
	}

	if err := sseClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start SSE client: %w", err)
	}

	if err := initialize(ctx, sseClient, c.timeout); err != nil {
		sseClient.Close()
		return fmt.Errorf("initialization failed: %w", err)
	}
	c.client = sseClient
	return nil
}

// CallTool executes a tool and returns the raw result.
func (c *CLIClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.CallTool(timeoutCtx, req)
	if err != nil {
		return nil, fmt.Errorf("tool call failed: %w", err)
	}
	return result, nil
}

// CallToolText executes a tool and returns its text content. A tool error
// is returned as a Go error.
func (c *CLIClient) CallToolText(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	result, err := c.CallTool(ctx, name, args)
	if err != nil {
		return "", err
	}
	text := resultText(result)
	if result.IsError {
		return "", fmt.Errorf("tool error: %s", text)
	}
	return text, nil
}

// Close closes the connection. Closing an unconnected client is a no-op.
func (c *CLIClient) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func initialize(ctx context.Context, mc *client.Client, timeout time.Duration) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{
		Name:    "integctl-cli",
		Version: "1.0.0",
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := mc.Initialize(timeoutCtx, req)
	return err
}

func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, textContent.Text)
		}
	}
	return strings.Join(parts, "\n")
}
