package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"chatgate/config"
	"chatgate/model"
	"chatgate/ui"
)

var (
	configExportPath string
	configResetAll   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change provider configs",
}

var configGetCmd = &cobra.Command{
	Use:   "get <provider>",
	Short: "Print a provider's effective config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := model.ParseProviderID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
			return printConfig(cmd.OutOrStdout(), a.manager.Config(p))
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <provider> <field> <value>",
	Short: "Change one field of a provider's config",
	Long: "Change one field of a provider's config. Fields: " +
		strings.Join(config.PatchFields(), ", "),
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := model.ParseProviderID(args[0])
		if err != nil {
			return err
		}
		patch, err := config.ParsePatch(args[1], args[2])
		if err != nil {
			return err
		}
		return withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
			cfg, err := a.manager.UpdateConfig(p, patch)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), ui.OKStyle.Render("Updated "+p.DisplayName()))
			return printConfig(cmd.OutOrStdout(), cfg)
		})
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset [provider]",
	Short: "Restore a provider's defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !configResetAll && len(args) == 0 {
			return fmt.Errorf("name a provider or pass --all")
		}
		return withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
			if configResetAll {
				a.manager.ResetAllConfigs()
				fmt.Fprintln(cmd.ErrOrStderr(), ui.OKStyle.Render("Reset all provider configs"))
				return nil
			}
			p, err := model.ParseProviderID(args[0])
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), a.manager.ResetConfig(p))
		})
	},
}

var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every config as a versioned envelope",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
			raw, err := a.manager.ExportConfigs()
			if err != nil {
				return err
			}
			if configExportPath == "" || configExportPath == "-" {
				fmt.Fprintln(cmd.OutOrStdout(), raw)
				return nil
			}
			if err := os.WriteFile(configExportPath, []byte(raw+"\n"), 0600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			return nil
		})
	},
}

var configImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Replace every config with an exported envelope",
	Long: `Replace every config with an exported envelope. Older schema versions
are migrated. Nothing changes unless every imported config is valid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read import: %w", err)
		}
		return withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
			if err := a.manager.ImportConfigs(string(data)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), ui.OKStyle.Render("Imported configs"))
			return nil
		})
	},
}

func init() {
	configResetCmd.Flags().BoolVar(&configResetAll, "all", false, "Reset every provider")
	configExportCmd.Flags().StringVarP(&configExportPath, "output", "o", "", "Write to this file instead of stdout")

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configExportCmd)
	configCmd.AddCommand(configImportCmd)
}

// printConfig writes cfg as JSON with the API key masked.
func printConfig(w io.Writer, cfg config.ServiceConfig) error {
	if cfg.APIKey != "" {
		cfg.APIKey = maskKey(cfg.APIKey)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
