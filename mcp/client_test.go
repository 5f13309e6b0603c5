package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/config"
)

func newEchoServer() *server.MCPServer {
	s := server.NewMCPServer("echo-server", "1.0.0", server.WithToolCapabilities(true))
	s.AddTool(
		mcptypes.NewTool("echo",
			mcptypes.WithDescription("Echo text"),
			mcptypes.WithString("text", mcptypes.Required()),
		),
		func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			text, _ := req.GetArguments()["text"].(string)
			return mcptypes.NewToolResultText(text), nil
		},
	)
	return s
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	log, _ := test.NewNullLogger()
	c := NewClient("test", log)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func attachEcho(t *testing.T, c *Client, name string) {
	t.Helper()
	inproc, err := client.NewInProcessClient(newEchoServer())
	require.NoError(t, err)
	require.NoError(t, c.Attach(context.Background(), name, inproc))
}

func TestListToolsQualifiesNames(t *testing.T) {
	c := newTestClient(t)
	attachEcho(t, c, "alpha")
	attachEcho(t, c, "beta")

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "alpha.echo", tools[0].Name)
	assert.Equal(t, "alpha", tools[0].Server)
	assert.Equal(t, "beta.echo", tools[1].Name)
	assert.Equal(t, "Echo text", tools[0].Description)
	assert.Equal(t, []string{"alpha", "beta"}, c.Servers())
}

func TestCallTool(t *testing.T) {
	c := newTestClient(t)
	attachEcho(t, c, "alpha")

	result, err := c.CallTool(context.Background(), "alpha.echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "hi", ResultText(result))
}

func TestCallToolNotConnected(t *testing.T) {
	c := newTestClient(t)

	_, err := c.CallTool(context.Background(), "missing.echo", nil)
	assert.True(t, errors.Is(err, ErrNotConnected))

	_, err = c.CallTool(context.Background(), "echo", nil)
	assert.Error(t, err)
}

func TestAttachTwiceFails(t *testing.T) {
	c := newTestClient(t)
	attachEcho(t, c, "alpha")

	inproc, err := client.NewInProcessClient(newEchoServer())
	require.NoError(t, err)
	assert.Error(t, c.Attach(context.Background(), "alpha", inproc))
}

func TestDisconnect(t *testing.T) {
	c := newTestClient(t)
	attachEcho(t, c, "alpha")

	require.NoError(t, c.Disconnect(context.Background(), "alpha"))
	assert.Empty(t, c.Servers())
	assert.True(t, errors.Is(c.Disconnect(context.Background(), "alpha"), ErrNotConnected))
}

func TestConnectRejectsBadConfig(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name string
		ts   config.ToolServer
	}{
		{"no name", config.ToolServer{Transport: TransportStdio, Command: "true"}},
		{"dotted name", config.ToolServer{Name: "a.b", Transport: TransportStdio, Command: "true"}},
		{"stdio without command", config.ToolServer{Name: "a", Transport: TransportStdio}},
		{"sse without url", config.ToolServer{Name: "a", Transport: TransportSSE}},
		{"http without url", config.ToolServer{Name: "a", Transport: TransportHTTP}},
		{"unknown transport", config.ToolServer{Name: "a", Transport: "carrier-pigeon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, c.Connect(ctx, tt.ts))
		})
	}
	assert.Empty(t, c.Servers())
}

func TestSplitToolName(t *testing.T) {
	server, tool := splitToolName("fs.read.file")
	assert.Equal(t, "fs", server)
	assert.Equal(t, "read.file", tool)

	server, tool = splitToolName("plain")
	assert.Equal(t, "", server)
	assert.Equal(t, "plain", tool)
}
