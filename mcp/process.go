package mcp

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"

	"chatgate/config"
)

const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// newTransportClient creates an unstarted client for the server's transport.
// Stdio clients spawn their process here and are already running.
func newTransportClient(ts config.ToolServer) (*client.Client, error) {
	switch ts.Transport {
	case TransportStdio, "":
		if ts.Command == "" {
			return nil, fmt.Errorf("tool server %s: command is required for stdio", ts.Name)
		}
		return client.NewStdioMCPClient(ts.Command, serverEnv(ts.Env), ts.Args...)

	case TransportSSE:
		if ts.URL == "" {
			return nil, fmt.Errorf("tool server %s: url is required for sse", ts.Name)
		}
		var opts []transport.ClientOption
		if len(ts.Env) > 0 {
			opts = append(opts, transport.WithHeaders(ts.Env))
		}
		return client.NewSSEMCPClient(ts.URL, opts...)

	case TransportHTTP:
		if ts.URL == "" {
			return nil, fmt.Errorf("tool server %s: url is required for http", ts.Name)
		}
		var opts []transport.StreamableHTTPCOption
		if len(ts.Env) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(ts.Env))
		}
		return client.NewStreamableHttpClient(ts.URL, opts...)

	default:
		return nil, fmt.Errorf("tool server %s: unknown transport %q", ts.Name, ts.Transport)
	}
}

// serverEnv is the current environment plus the server's own variables,
// so PATH and friends survive.
func serverEnv(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// closeWithTimeout closes c but gives up after the ctx deadline. A hung
// stdio child must not block shutdown.
func closeWithTimeout(ctx context.Context, c *client.Client) error {
	done := make(chan error, 1)
	go func() {
		done <- c.Close()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
