package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"

	"github.com/okian/standings/internal/adapters/http/ws"
)

func newWatchCmd() *cobra.Command {
	var (
		url         string
		competition string
	)

	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Stream leaderboard updates from a running server",
		Example: "standings watch --url ws://localhost:5001/ws --competition titanic",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cmd.OutOrStdout(), url, competition)
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:5001/ws", "WebSocket endpoint")
	cmd.Flags().StringVarP(&competition, "competition", "c", "", "only print updates for this competition")
	return cmd
}

// watch prints one line per update until ctx ends or the server closes.
func watch(ctx context.Context, out io.Writer, url, competition string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		msg, err := decodeMessage(raw)
		if err != nil {
			fmt.Fprintf(out, "skipping undecodable message: %v\n", err)
			continue
		}
		if competition != "" && msg.Data.CompetitionName != competition {
			continue
		}
		fmt.Fprintln(out, formatMessage(msg))
	}
}

var errUnknownEvent = errors.New("unknown event")

func decodeMessage(raw []byte) (ws.Message, error) {
	var msg ws.Message
	if err := sonnet.Unmarshal(raw, &msg); err != nil {
		return ws.Message{}, err
	}
	if msg.Event != ws.EventUpdateLeaderboard {
		return ws.Message{}, fmt.Errorf("%w: %q", errUnknownEvent, msg.Event)
	}
	return msg, nil
}

func formatMessage(msg ws.Message) string {
	line := fmt.Sprintf("%s  %s  %d entries", msg.Data.LastUpdated, msg.Data.CompetitionName, len(msg.Data.Leaderboard))
	if len(msg.Data.Leaderboard) > 0 {
		top := msg.Data.Leaderboard[0]
		line += fmt.Sprintf("  leader: %s (%g)", top.Team, top.Score)
	}
	return line
}
