package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"chaos-ai/internal/config"
	"chaos-ai/internal/service"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [message...]",
		Short: "Relay one message and print the reply",
		Long:  "Relay one message and print the reply. The message is read from stdin when no arguments are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return service.WrapError(err, "load configuration")
			}
			setupLogging(cfg, cmd.ErrOrStderr())

			message := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return service.WrapError(err, "read message from stdin")
				}
				message = strings.TrimRight(string(data), "\r\n")
			}

			relay, _, err := newRelay(cfg, nil)
			if err != nil {
				return err
			}

			resp, err := relay.Relay(cmd.Context(), service.RelayRequest{Message: message})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Response)
			return err
		},
	}
}
