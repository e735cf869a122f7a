package chess

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/park285/chess-web/internal/domain"
)

var ErrDuplicateGame = errors.New("chess game already exists")

// Repository archives finished games.
type Repository interface {
	InsertGame(ctx context.Context, game *domain.ChessGame) (int64, error)
	GetRecentGames(ctx context.Context, playerHash string, limit int) ([]*domain.ChessGame, error)
	GetGameBySession(ctx context.Context, sessionUUID string, playerHash string) (*domain.ChessGame, error)
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS web_chess_games (
	id                BIGSERIAL PRIMARY KEY,
	session_uuid      TEXT NOT NULL UNIQUE,
	player_hash       TEXT NOT NULL,
	result            TEXT NOT NULL,
	result_method     TEXT NOT NULL,
	moves_uci         JSONB NOT NULL,
	moves_san         JSONB NOT NULL,
	captured_white    JSONB NOT NULL,
	captured_black    JSONB NOT NULL,
	pgn               TEXT NOT NULL,
	started_at        TIMESTAMPTZ NOT NULL,
	ended_at          TIMESTAMPTZ NOT NULL,
	duration_ms       BIGINT,
	engine_latency_ms BIGINT
);
CREATE INDEX IF NOT EXISTS web_chess_games_player_idx ON web_chess_games (player_hash, ended_at DESC);`

const selectGameColumns = `
	id,
	session_uuid,
	player_hash,
	result,
	result_method,
	moves_uci,
	moves_san,
	captured_white,
	captured_black,
	pgn,
	started_at,
	ended_at,
	duration_ms,
	engine_latency_ms`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// EnsureSchema creates the archive table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure chess schema: %w", err)
	}
	return nil
}

func (r *repository) InsertGame(ctx context.Context, game *domain.ChessGame) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil chess game payload")
	}

	lists := make([][]byte, 0, 4)
	for _, l := range [][]string{game.MovesUCI, game.MovesSAN, game.CapturedWhite, game.CapturedBlack} {
		if l == nil {
			l = []string{}
		}
		raw, err := json.Marshal(l)
		if err != nil {
			return 0, fmt.Errorf("marshal move list: %w", err)
		}
		lists = append(lists, raw)
	}

	const query = `
		INSERT INTO web_chess_games (
			session_uuid,
			player_hash,
			result,
			result_method,
			moves_uci,
			moves_san,
			captured_white,
			captured_black,
			pgn,
			started_at,
			ended_at,
			duration_ms,
			engine_latency_ms
		)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7::jsonb, $8::jsonb, $9, $10, $11, $12, $13)
		ON CONFLICT (session_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err := r.db.QueryRowContext(
		ctx,
		query,
		game.SessionUUID,
		game.PlayerHash,
		game.Result,
		game.ResultMethod,
		lists[0],
		lists[1],
		lists[2],
		lists[3],
		game.PGN,
		game.StartedAt,
		game.EndedAt,
		game.Duration.Milliseconds(),
		game.EngineLatency.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert chess game: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) GetRecentGames(ctx context.Context, playerHash string, limit int) ([]*domain.ChessGame, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT` + selectGameColumns + `
		FROM web_chess_games
		WHERE player_hash = $1
		ORDER BY ended_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerHash, limit)
	if err != nil {
		return nil, fmt.Errorf("select chess games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.ChessGame, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chess games: %w", err)
	}
	return games, nil
}

func (r *repository) GetGameBySession(ctx context.Context, sessionUUID string, playerHash string) (*domain.ChessGame, error) {
	query := `SELECT` + selectGameColumns + `
		FROM web_chess_games
		WHERE session_uuid = $1 AND player_hash = $2
		LIMIT 1`

	game, err := scanGame(r.db.QueryRowContext(ctx, query, sessionUUID, playerHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return game, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.ChessGame, error) {
	var (
		game       domain.ChessGame
		uciJSON    []byte
		sanJSON    []byte
		whiteJSON  []byte
		blackJSON  []byte
		durationMS sql.NullInt64
		latencyMS  sql.NullInt64
	)
	err := row.Scan(
		&game.ID,
		&game.SessionUUID,
		&game.PlayerHash,
		&game.Result,
		&game.ResultMethod,
		&uciJSON,
		&sanJSON,
		&whiteJSON,
		&blackJSON,
		&game.PGN,
		&game.StartedAt,
		&game.EndedAt,
		&durationMS,
		&latencyMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan chess game: %w", err)
	}

	if durationMS.Valid {
		game.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if latencyMS.Valid {
		game.EngineLatency = time.Duration(latencyMS.Int64) * time.Millisecond
	}
	targets := []struct {
		raw []byte
		dst *[]string
	}{
		{uciJSON, &game.MovesUCI},
		{sanJSON, &game.MovesSAN},
		{whiteJSON, &game.CapturedWhite},
		{blackJSON, &game.CapturedBlack},
	}
	for _, t := range targets {
		if len(t.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(t.raw, t.dst); err != nil {
			return nil, fmt.Errorf("unmarshal chess game list: %w", err)
		}
	}
	return &game, nil
}
