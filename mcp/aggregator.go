package mcp

import (
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// qualify namespaces a tool with its server so names from different
// servers cannot collide.
func qualify(server string, tools []mcptypes.Tool) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, Tool{
			Server:      server,
			Name:        server + "." + t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

// splitToolName separates "server.tool". The tool part may itself
// contain dots.
func splitToolName(name string) (server, tool string) {
	idx := strings.Index(name, ".")
	if idx == -1 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}
