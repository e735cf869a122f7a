// Command chesscheck plays a short scripted exchange against a running
// chess-web server and exits non-zero if any step misbehaves.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-web/internal/obslog"
	"github.com/park285/chess-web/internal/webclient"
	"github.com/park285/chess-web/pkg/chessdto"
)

func main() {
	defaultURL := os.Getenv("CHESS_BASE_URL")
	if defaultURL == "" {
		defaultURL = "http://127.0.0.1:5000"
	}
	base := flag.String("url", defaultURL, "server base URL (or CHESS_BASE_URL)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := check(ctx, webclient.New(*base), logger); err != nil {
		logger.Error("chesscheck failed", zap.Error(err))
		obslog.Sync()
		os.Exit(1)
	}
	logger.Info("chesscheck passed", zap.String("url", *base))
}

func check(ctx context.Context, c *webclient.Client, logger *zap.Logger) error {
	if err := c.Healthy(ctx); err != nil {
		return err
	}
	started, err := c.NewGame(ctx)
	if err != nil {
		return fmt.Errorf("new game: %w", err)
	}
	logger.Info("game started", zap.String("game_id", started.GameID))

	valid, err := c.ValidMoves(ctx, 6, 4)
	if err != nil {
		return fmt.Errorf("valid moves: %w", err)
	}
	if len(valid.ValidMoves) != 2 {
		return fmt.Errorf("e2 should have 2 destinations, got %v", valid.ValidMoves)
	}

	moved, err := c.Move(ctx, chessdto.MoveRequest{FromRow: 6, FromCol: 4, ToRow: 4, ToCol: 4})
	if err != nil {
		return fmt.Errorf("move: %w", err)
	}
	if !moved.AIMoved || len(moved.GameState.MoveHistory) != 2 {
		return fmt.Errorf("engine did not reply: %+v", moved.GameState.MoveHistory)
	}
	logger.Info("engine replied", zap.Strings("moves", moved.GameState.MoveHistory))

	if _, err := c.Move(ctx, chessdto.MoveRequest{FromRow: 6, FromCol: 0, ToRow: 3, ToCol: 0}); err == nil {
		return fmt.Errorf("illegal move a2a5 was accepted")
	}

	img, err := c.BoardPNG(ctx)
	if err != nil {
		return fmt.Errorf("board image: %w", err)
	}
	logger.Info("board image", zap.Int("bytes", len(img)))

	undone, err := c.Undo(ctx)
	if err != nil {
		return fmt.Errorf("undo: %w", err)
	}
	if len(undone.GameState.MoveHistory) != 0 {
		return fmt.Errorf("undo left moves: %v", undone.GameState.MoveHistory)
	}
	return nil
}
