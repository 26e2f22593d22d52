// Command watch follows a game's broadcast topics over the websocket endpoint
// and prints every event as one JSON line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	serverURL = flag.String("url", "ws://localhost:8080/ws", "websocket endpoint")
	gameID    = flag.String("game", "", "game to follow; empty follows the lobby only")
	spectator = flag.String("as", "", "register as a spectator with this username")
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watch(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("watch stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func topics(id string) []string {
	out := []string{broadcast.TopicGames, broadcast.TopicGameRemoved, broadcast.TopicPublicChat}
	if id == "" {
		return out
	}
	return append(out,
		broadcast.GameTopic(id),
		broadcast.GameStartedTopic(id),
		broadcast.GameWatchTopic(id),
		broadcast.AuctionBidTopic(id),
		broadcast.AuctionEndTopic(id),
		broadcast.ContractTopic(id),
		broadcast.ChatTopic(id),
	)
}

func watch(ctx context.Context, logger *zap.Logger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *serverURL, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for _, topic := range topics(*gameID) {
		if err := conn.WriteJSON(broadcast.Message{Type: broadcast.TypeSubscribe, Topic: topic}); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}

	if *spectator != "" && *gameID != "" {
		err := conn.WriteJSON(broadcast.Message{
			Type:      broadcast.TypeCommand,
			Command:   "watchGame",
			RequestID: "watch",
			Payload:   map[string]any{"gameId": *gameID, "username": *spectator},
		})
		if err != nil {
			return fmt.Errorf("register spectator: %w", err)
		}
	}

	logger.Info("watching",
		zap.String("url", *serverURL),
		zap.String("game_id", *gameID),
	)

	out := json.NewEncoder(os.Stdout)
	for {
		var msg broadcast.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		switch msg.Type {
		case broadcast.TypeSubscribed, broadcast.TypeUnsubscribed:
			logger.Debug("subscription", zap.String("type", msg.Type), zap.String("topic", msg.Topic))
		case broadcast.TypeError:
			logger.Warn("server error", zap.String("command", msg.Command), zap.Any("error", msg.Error))
		default:
			if err := out.Encode(msg); err != nil {
				return err
			}
		}
	}
}
