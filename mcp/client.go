// Package mcp is the tool sidecar: it connects to MCP servers over stdio,
// SSE or streamable HTTP and exposes their tools under server-qualified
// names.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"chatgate/config"
)

const (
	protocolVersion       = "2025-06-18"
	defaultConnectTimeout = 30 * time.Second
	closeTimeout          = time.Second
)

// Client manages connections to any number of tool servers.
type Client struct {
	mu      sync.RWMutex
	servers map[string]*serverConn
	name    string
	version string
	log     logrus.FieldLogger
}

// NewClient returns a client with no connections.
func NewClient(version string, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		servers: make(map[string]*serverConn),
		name:    "chatgate",
		version: version,
		log:     log.WithField("component", "mcp"),
	}
}

// Connect starts the server's transport, performs the initialize handshake
// and caches its tool list. The whole sequence is bounded by the server
// timeout (30s when unset).
func (c *Client) Connect(ctx context.Context, ts config.ToolServer) error {
	if ts.Name == "" {
		return fmt.Errorf("tool server name is required")
	}
	if strings.Contains(ts.Name, ".") {
		return fmt.Errorf("tool server name %q must not contain '.'", ts.Name)
	}

	timeout := defaultConnectTimeout
	if ts.Timeout > 0 {
		timeout = time.Duration(ts.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	mc, err := newTransportClient(ts)
	if err != nil {
		return fmt.Errorf("failed to create client for %s: %w", ts.Name, err)
	}
	return c.attach(ctx, ts.Name, mc, ts.Transport != TransportStdio && ts.Transport != "")
}

// Attach registers an already created client under name. It is used for
// in-process servers.
func (c *Client) Attach(ctx context.Context, name string, mc *client.Client) error {
	return c.attach(ctx, name, mc, false)
}

func (c *Client) attach(ctx context.Context, name string, mc *client.Client, remote bool) error {
	c.mu.RLock()
	_, exists := c.servers[name]
	c.mu.RUnlock()
	if exists {
		mc.Close()
		return fmt.Errorf("tool server %s already connected", name)
	}

	if err := mc.Start(ctx); err != nil {
		mc.Close()
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	_, err := mc.Initialize(ctx, mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    c.name,
				Version: c.version,
			},
		},
	})
	if err != nil {
		mc.Close()
		return fmt.Errorf("failed to initialize %s: %w", name, err)
	}

	result, err := mc.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		mc.Close()
		return fmt.Errorf("failed to list tools for %s: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.servers[name]; exists {
		mc.Close()
		return fmt.Errorf("tool server %s already connected", name)
	}
	c.servers[name] = &serverConn{
		name:   name,
		client: mc,
		tools:  result.Tools,
		remote: remote,
	}
	c.log.WithFields(logrus.Fields{"server": name, "tools": len(result.Tools), "remote": remote}).Info("Connected tool server")
	return nil
}

// Disconnect closes one server.
func (c *Client) Disconnect(ctx context.Context, name string) error {
	c.mu.Lock()
	conn, ok := c.servers[name]
	delete(c.servers, name)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotConnected)
	}

	closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := closeWithTimeout(closeCtx, conn.client); err != nil {
		c.log.WithError(err).WithField("server", name).Warn("Tool server did not close cleanly")
	}
	return nil
}

// Servers returns the connected server names, sorted.
func (c *Client) Servers() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// ListTools returns the tools of every connected server, refreshing each
// server's list. A server whose refresh fails keeps its cached list.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	type entry struct {
		conn   *serverConn
		cached []mcptypes.Tool
	}
	c.mu.RLock()
	entries := make([]entry, 0, len(c.servers))
	for _, conn := range c.servers {
		entries = append(entries, entry{conn: conn, cached: conn.tools})
	}
	c.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].conn.name < entries[j].conn.name })

	var tools []Tool
	for _, e := range entries {
		conn, list := e.conn, e.cached
		if result, err := conn.client.ListTools(ctx, mcptypes.ListToolsRequest{}); err != nil {
			c.log.WithError(err).WithField("server", conn.name).Debug("Tool refresh failed")
		} else {
			list = result.Tools
			c.mu.Lock()
			conn.tools = list
			c.mu.Unlock()
		}
		tools = append(tools, qualify(conn.name, list)...)
	}
	return tools, nil
}

// CallTool invokes a qualified tool name ("server.tool").
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	server, tool := splitToolName(name)
	if server == "" {
		return nil, fmt.Errorf("tool name %q is not qualified with a server", name)
	}

	c.mu.RLock()
	conn, ok := c.servers[server]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", server, ErrNotConnected)
	}

	return conn.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      tool,
			Arguments: args,
		},
	})
}

// Close disconnects every server in parallel.
func (c *Client) Close(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, name := range c.Servers() {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_ = c.Disconnect(ctx, name)
		}(name)
	}
	wg.Wait()
	return nil
}

// ResultText flattens a tool result into text. Non-text content is
// rendered as JSON.
func ResultText(result *mcptypes.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, content := range result.Content {
		switch v := content.(type) {
		case mcptypes.TextContent:
			parts = append(parts, v.Text)
		case *mcptypes.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}
