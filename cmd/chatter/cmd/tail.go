package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/nfrund/chatter/internal/protocol"
)

var (
	tailURL   string
	tailToken string
	tailRoom  string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print events from a running server",
	Long: `Connect to the websocket endpoint as the token's user, optionally join a
room, and print every event received until interrupted.

Examples:
  chatter tail --token "$(chatter token alice)"
  chatter tail --url ws://chat.example.com/ws --token $TOKEN --room general`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tailToken == "" {
			return errors.New("--token is required")
		}
		return tail(cmd.OutOrStdout())
	},
}

func tail(out io.Writer) error {
	u, err := url.Parse(tailURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+tailToken)

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s", u, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()

	if tailRoom != "" {
		frame, err := protocol.Encode(protocol.EventJoinRoom, protocol.JoinRoom{Room: tailRoom}, nil)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return fmt.Errorf("join %s: %w", tailRoom, err)
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	done := make(chan error, 1)
	go func() {
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			env, err := protocol.Decode(frame)
			if err != nil {
				fmt.Fprintf(out, "! %s\n", frame)
				continue
			}
			fmt.Fprintf(out, "%-18s %s\n", env.Event, env.Data)
		}
	}()

	select {
	case err := <-done:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return err
	case <-interrupt:
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		return conn.WriteMessage(websocket.CloseMessage, msg)
	}
}

func init() {
	rootCmd.AddCommand(tailCmd)
	tailCmd.Flags().StringVar(&tailURL, "url", "ws://localhost:5050/ws", "Websocket endpoint")
	tailCmd.Flags().StringVar(&tailToken, "token", "", "Bearer token (see chatter token)")
	tailCmd.Flags().StringVar(&tailRoom, "room", "", "Room to join after connecting")
}
