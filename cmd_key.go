package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"chatgate/model"
	"chatgate/ui"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage provider API keys",
}

var keySetCmd = &cobra.Command{
	Use:   "set <provider> [key]",
	Short: "Store an API key",
	Long: `Store an API key in the credential store. Without the key argument it
is read from the terminal without echo, or from stdin.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := model.ParseProviderID(args[0])
		if err != nil {
			return err
		}
		key := ""
		if len(args) == 2 {
			key = args[1]
		} else if key, err = readSecret(p.DisplayName() + " API key: "); err != nil {
			return err
		}
		if key == "" {
			return errors.New("empty API key")
		}
		return withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
			if err := a.manager.SetCredential(p, key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), ui.OKStyle.Render("Stored key for "+p.DisplayName()))
			return nil
		})
	},
}

var keyRemoveCmd = &cobra.Command{
	Use:   "remove <provider>",
	Short: "Delete a stored API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := model.ParseProviderID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, appOptions{}, func(_ context.Context, a *app) error {
			return a.manager.RemoveCredential(p)
		})
	},
}

var keyCheckCmd = &cobra.Command{
	Use:   "check <provider> [key]",
	Short: "Verify an API key against the provider",
	Long:  "Verify an API key against the provider. Without the key argument the stored key is checked.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := model.ParseProviderID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			candidate := ""
			if len(args) == 2 {
				candidate = args[1]
			} else if stored, ok := a.creds.Credential(p); ok {
				candidate = stored
			} else if cfgKey := a.manager.Config(p).APIKey; cfgKey != "" {
				candidate = cfgKey
			}

			if !a.manager.CheckAPIKey(ctx, p, candidate) {
				msg := "API key rejected"
				if st := a.manager.Status(p); st.Error != "" {
					msg = st.Error
				}
				return fmt.Errorf("%s: %s", p.DisplayName(), msg)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.OKStyle.Render(p.DisplayName()+" key is valid"))
			return nil
		})
	},
}

func init() {
	keyCmd.AddCommand(keySetCmd)
	keyCmd.AddCommand(keyRemoveCmd)
	keyCmd.AddCommand(keyCheckCmd)
}
