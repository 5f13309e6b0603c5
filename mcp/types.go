package mcp

import (
	"errors"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ErrNotConnected is returned for calls on a server that is not connected.
var ErrNotConnected = errors.New("tool server not connected")

// Tool is a tool advertised by a connected server. Name is qualified with
// the server name ("server.tool").
type Tool struct {
	Server      string
	Name        string
	Description string
	InputSchema mcptypes.ToolInputSchema
}

type serverConn struct {
	name   string
	client *client.Client
	tools  []mcptypes.Tool
	remote bool
}
