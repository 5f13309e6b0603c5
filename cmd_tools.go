package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"chatgate/mcp"
	"chatgate/ui"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List and call tools on the configured MCP servers",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools from every connected server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, appOptions{connectTools: true}, func(ctx context.Context, a *app) error {
			tools, err := a.manager.Tools(ctx)
			if err != nil {
				return err
			}
			if len(tools) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tools available. Add [[tool_servers]] to settings.toml.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderTools(tools, terminalWidth()))
			return nil
		})
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <server.tool> [json-arguments]",
	Short: "Call a tool and print its text result",
	Example: `  chatgate tools call filesystem.read_file '{"path":"/tmp/notes.txt"}'`,
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var arguments map[string]any
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &arguments); err != nil {
				return fmt.Errorf("arguments must be a JSON object: %w", err)
			}
		}
		return withApp(cmd, appOptions{connectTools: true}, func(ctx context.Context, a *app) error {
			result, err := a.manager.CallTool(ctx, args[0], arguments)
			if err != nil {
				return err
			}
			text := mcp.ResultText(result)
			if result.IsError {
				return errors.New(text)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		})
	},
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsCallCmd)
}
