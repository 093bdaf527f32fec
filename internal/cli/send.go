package cli

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/gateway"
)

func newSendCmd() *cobra.Command {
	var (
		server   string
		clientID string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a message to a running parley server and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			base := server
			if base == "" {
				cfg, err := config.Load(paths.Config)
				if err != nil {
					cfg = config.Defaults()
				}
				host := cfg.Server.Bind
				if host == "" || host == "0.0.0.0" {
					host = "127.0.0.1"
				}
				base = fmt.Sprintf("ws://%s:%d", host, cfg.Server.Port)
			}
			if !strings.Contains(base, "://") {
				base = "ws://" + base
			}
			base = strings.TrimSuffix(base, "/")

			wsURL := base + "/ws/" + url.PathEscape(clientID)

			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				return fmt.Errorf("connecting to %s: %w (is the server running?)", wsURL, err)
			}
			defer conn.Close()

			if err := conn.WriteJSON(gateway.ChatRequest{Message: message}); err != nil {
				return fmt.Errorf("sending message: %w", err)
			}

			conn.SetReadDeadline(time.Now().Add(timeout))

			// The reply is either a response frame or an error frame;
			// one struct covers both.
			var frame struct {
				Type          string                  `json:"type"`
				Message       string                  `json:"message"`
				Error         string                  `json:"error"`
				ToolsUsed     []string                `json:"tools_used"`
				Interactive   bool                    `json:"interactive"`
				ToolExecution []gateway.ToolExecution `json:"tool_execution"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				return fmt.Errorf("reading reply: %w", err)
			}

			if frame.Type == gateway.FrameTypeError {
				return fmt.Errorf("server error: %s", frame.Error)
			}

			fmt.Println(frame.Message)
			if frame.Interactive {
				fmt.Fprintf(cmd.ErrOrStderr(), "\n[tools: %s]\n", strings.Join(frame.ToolsUsed, ", "))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server address (default from config, e.g. ws://127.0.0.1:8765)")
	cmd.Flags().StringVar(&clientID, "client", "cli", "client identity for conversation memory")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the reply")

	return cmd
}
