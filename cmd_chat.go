package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"chatgate/model"
	"chatgate/stream"
	"chatgate/ui"
)

var (
	chatProvider string
	chatModel    string
	chatSystem   string
	chatRender   bool
	chatCopy     bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt...]",
	Short: "Send one prompt and stream the reply",
	Long: `Send a single prompt and stream the reply to stdout. Without arguments
the prompt is read from stdin. Ctrl+C stops the reply.`,
	RunE: runChat,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive chat in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := model.ParseProviderID(chatProvider)
		if err != nil {
			return err
		}
		return withApp(cmd, appOptions{connectTools: true, watchConfig: true}, func(ctx context.Context, a *app) error {
			return ui.RunChat(ctx, a.manager, p, chatModel, chatSystem)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, tuiCmd} {
		c.Flags().StringVarP(&chatProvider, "provider", "p", string(model.ProviderOllama), "Provider to chat with")
		c.Flags().StringVarP(&chatModel, "model", "m", "", "Model id (defaults to the provider's default model)")
		c.Flags().StringVarP(&chatSystem, "system", "s", "", "System prompt")
	}
	chatCmd.Flags().BoolVar(&chatRender, "render", false, "Render the reply as markdown once it is complete")
	chatCmd.Flags().BoolVar(&chatCopy, "copy", false, "Copy the reply to the clipboard")
}

func runChat(cmd *cobra.Command, args []string) error {
	p, err := model.ParseProviderID(chatProvider)
	if err != nil {
		return err
	}

	prompt := strings.Join(args, " ")
	if prompt == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return errors.New("empty prompt")
	}

	var messages []model.Message
	if chatSystem != "" {
		messages = append(messages, model.NewSystemMessage(chatSystem))
	}
	messages = append(messages, model.NewUserMessage(prompt))

	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		var reply string
		var aborted bool

		h := stream.Handlers{
			OnComplete: func(full string) { reply = full },
			OnAbort:    func() { aborted = true },
		}
		if !chatRender {
			h.OnToken = func(tok string) { fmt.Fprint(out, tok) }
		}

		err := a.manager.ChatWithHandlers(ctx, p, chatModel, messages, h)
		if aborted {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.DimStyle.Render("\n[stopped]"))
			return nil
		}
		if err != nil {
			return err
		}

		if chatRender {
			fmt.Fprintln(out, ui.RenderMarkdown(reply, terminalWidth()))
		} else {
			fmt.Fprintln(out)
		}
		if chatCopy {
			if err := ui.CopyToClipboard(reply); err != nil {
				return fmt.Errorf("failed to copy reply: %w", err)
			}
		}
		return nil
	})
}
