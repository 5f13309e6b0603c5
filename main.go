package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"chatgate/model"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=X.Y.Z"
	Version = "v0.1.0"

	verbose     bool
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "chatgate",
	Short: "Stream chats from Ollama, OpenAI, DeepSeek and Anthropic",
	Long: `chatgate is a gateway to several LLM chat providers behind one
configuration and streaming interface.

Examples:
  chatgate chat "why is the sky blue?"              # local Ollama
  chatgate chat -p openai -m gpt-4o-mini "hello"
  chatgate key set openai                           # prompts for the key
  chatgate config set ollama baseUrl http://gpu:11434
  chatgate models --search llama
  chatgate tui -p anthropic

Settings: ~/.config/chatgate/settings.toml`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(toolsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// withApp builds the app for the duration of one command.
func withApp(cmd *cobra.Command, opts appOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func providerArg(args []string, i int, fallback model.ProviderID) (model.ProviderID, error) {
	if len(args) <= i {
		return fallback, nil
	}
	return model.ParseProviderID(args[i])
}

// readLine reads one trimmed line from r.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
