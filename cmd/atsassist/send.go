package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"atsassist/internal/ctxkeys"
	"atsassist/pkg/api"
	"atsassist/pkg/domain"
)

var (
	sendAddr    string
	sendTimeout time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <TYPE> [payload]",
	Short: "Send a message to the running service and print the response",
	Example: `  atsassist send PING
  atsassist send SET_SIDEBAR_STATE '{"isOpen":true}'
  atsassist send GET_CANDIDATE '{"id":"42"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg := domain.Message{Type: domain.MessageType(strings.ToUpper(args[0]))}
		if len(args) == 2 {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("payload is not valid json: %s", args[1])
			}
			msg.Payload = json.RawMessage(args[1])
		}

		addr := sendAddr
		if addr == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			addr = cfg.Server.Listen
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
		defer cancel()
		ctx = ctxkeys.WithTraceID(ctx, "")

		resp, err := api.NewClient(addr).SendRequest(ctx, msg)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("%s failed: %s", msg.Type, resp.Error)
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendAddr, "addr", "", "service address (default: server.listen from config)")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 10*time.Second, "request timeout")
	rootCmd.AddCommand(sendCmd)
}
