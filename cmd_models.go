package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"chatgate/model"
	"chatgate/ui"
)

var modelsSearch string

var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List the models a provider offers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := providerArg(args, 0, model.ProviderOllama)
		if err != nil {
			return err
		}
		return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			models, err := a.manager.SearchModels(ctx, p, modelsSearch)
			if err != nil {
				return err
			}
			if len(models) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No models found")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderModels(models, terminalWidth()))
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe every registered provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			providers := a.manager.Providers()

			var wg sync.WaitGroup
			for _, p := range providers {
				wg.Add(1)
				go func(p model.ProviderID) {
					defer wg.Done()
					a.manager.CheckAvailable(ctx, p)
				}(p)
			}
			wg.Wait()

			fmt.Fprint(cmd.OutOrStdout(), ui.RenderStatus(a.manager.Statuses(), providers))
			return nil
		})
	},
}

func init() {
	modelsCmd.Flags().StringVar(&modelsSearch, "search", "", "Fuzzy filter on model ids")
}
