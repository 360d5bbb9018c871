// chaos-ai relays chat messages to a deliberately unhelpful assistant
// persona over HTTP and WebSocket.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"chaos-ai/internal/config"
	"chaos-ai/internal/llm"
	"chaos-ai/internal/persona"
	"chaos-ai/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	root := &cobra.Command{
		Use:   "chaos-ai",
		Short: "chaos-ai - a delightfully broken AI assistant",
		Long: `chaos-ai relays messages to a chat completion backend with a fixed,
confidently wrong persona.

  chaos-ai serve --port 3000     Start the HTTP and WebSocket server
  chaos-ai ask "what time is it" Relay one message and print the reply`,
		SilenceUsage: true,
		// Running without a subcommand starts the server.
		RunE: serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve, newAskCmd())
	return root
}

// setupLogging configures the default slog logger from cfg.
func setupLogging(cfg *config.Config, out io.Writer) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)
}

// newRelay wires the completion client and persona bundle into a relay.
func newRelay(cfg *config.Config, recorder service.Recorder) (service.RelayService, *llm.Client, error) {
	params, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		return nil, nil, service.WrapError(err, "load persona")
	}
	client := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, params.Model)
	slog.Debug("LLM configuration", "base_url", client.BaseURL, "model", params.Model,
		"temperature", params.Temperature, "max_tokens", params.MaxTokens)

	return service.NewRelayService(client, params, recorder), client, nil
}
