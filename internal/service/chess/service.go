package chess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
	"github.com/google/uuid"
	"go.uber.org/zap"

	corechess "github.com/park285/chess-web/internal/chess"
	"github.com/park285/chess-web/internal/domain"
	"github.com/park285/chess-web/internal/service/cache"
)

var (
	ErrSessionNotFound   = errors.New("chess session not found")
	ErrInvalidMove       = errors.New("invalid chess move")
	ErrUndoNotAvailable  = errors.New("no moves available to undo")
	ErrEngineUnavailable = errors.New("chess engine unavailable")
	ErrEngineTimeout     = errors.New("chess engine timeout")
	ErrConcurrentUpdate  = errors.New("chess session updated concurrently")
)

const (
	defaultEngineTimeout = 10 * time.Second
	defaultHistoryLimit  = 10
	maxHistoryLimit      = 50
	historyCacheTTL      = 30 * time.Second
)

type Evaluator interface {
	Evaluate(ctx context.Context, req corechess.EvaluateRequest) (corechess.EvaluateResult, error)
}

type Config struct {
	HistoryLimit  int
	EngineTimeout time.Duration
}

type Service struct {
	engine   Evaluator
	store    Store
	repo     Repository
	renderer BoardRenderer
	history  *cache.CacheService
	cfg      Config
	logger   *zap.Logger
}

type MoveResult struct {
	Snapshot    *Snapshot
	PlayerMove  string
	EngineMove  string
	EngineMoved bool
}

func NewService(engine Evaluator, store Store, repo Repository, renderer BoardRenderer, cfg Config, logger *zap.Logger) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("chess engine evaluator is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("chess repository is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("board renderer is required")
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = defaultEngineTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		engine:   engine,
		store:    store,
		repo:     repo,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// UseHistoryCache caches History results in Redis for a short time.
func (s *Service) UseHistoryCache(c *cache.CacheService) {
	s.history = c
}

func (s *Service) NewGame(ctx context.Context, playerID string) (*Snapshot, error) {
	now := time.Now()
	rec := &GameRecord{
		ID:        uuid.NewString(),
		PlayerID:  strings.TrimSpace(playerID),
		Moves:     []string{},
		Captured:  CapturedPieces{White: []string{}, Black: []string{}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	s.logger.Info("chess_game_created", zap.String("game_id", rec.ID))
	return BuildSnapshot(rec)
}

// SubmitMove applies the player's move and, unless the game ended, the
// engine's reply. Any failure leaves the stored game as it was.
func (s *Service) SubmitMove(ctx context.Context, gameID string, from, to Coord) (*MoveResult, error) {
	var (
		result   MoveResult
		game     *nchess.Game
		finished bool
		latency  time.Duration
	)

	rec, err := s.store.Update(ctx, gameID, func(rec *GameRecord) error {
		result = MoveResult{}
		latency = 0

		g, err := replayMoves(rec.Moves)
		if err != nil {
			return err
		}
		if g.Outcome() != nchess.NoOutcome || !from.Valid() || !to.Valid() {
			return ErrInvalidMove
		}

		text, ok := resolveMove(g, from.square(), to.square())
		if !ok {
			return ErrInvalidMove
		}
		if err := applyPly(rec, g, text); err != nil {
			return ErrInvalidMove
		}
		result.PlayerMove = text

		if g.Outcome() == nchess.NoOutcome {
			reply, err := s.engineReply(ctx, rec)
			if err != nil {
				return err
			}
			if err := applyPly(rec, g, reply.BestMove); err != nil {
				s.logger.Error("engine move rejected",
					zap.String("game_id", rec.ID),
					zap.String("move_uci", reply.BestMove),
					zap.Error(err))
				return ErrEngineUnavailable
			}
			s.logOpeningLabel(rec.ID, g, reply.BestMove)
			result.EngineMove = reply.BestMove
			result.EngineMoved = true
			latency = reply.Duration
		}

		finished = g.Outcome() != nchess.NoOutcome && !rec.Archived
		if finished {
			rec.Archived = true
		}
		game = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	if finished {
		s.archive(ctx, rec, game, latency)
	}
	result.Snapshot = snapshotFromGame(rec, game)
	return &result, nil
}

// LegalDestinations lists where the piece on from may move. Empty squares,
// unknown games and finished games yield an empty list.
func (s *Service) LegalDestinations(ctx context.Context, gameID string, from Coord) ([]Coord, error) {
	rec, err := s.store.Load(ctx, gameID)
	if errors.Is(err, ErrSessionNotFound) {
		return []Coord{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !from.Valid() {
		return []Coord{}, nil
	}
	game, err := replayMoves(rec.Moves)
	if err != nil {
		return nil, err
	}
	if game.Outcome() != nchess.NoOutcome {
		return []Coord{}, nil
	}
	return destinations(game, from.square()), nil
}

// Undo takes back the last two plies and the captures they made.
func (s *Service) Undo(ctx context.Context, gameID string) (*Snapshot, error) {
	rec, err := s.store.Update(ctx, gameID, func(rec *GameRecord) error {
		n := len(rec.Moves)
		if n < 2 {
			return ErrUndoNotAvailable
		}
		game, err := replayMoves(rec.Moves)
		if err != nil {
			return err
		}
		positions := game.Positions()
		for i := n - 1; i >= n-2; i-- {
			from, to, err := parseUCISquares(rec.Moves[i])
			if err != nil {
				return err
			}
			if _, captured := capturedBy(positions[i], from, to); !captured {
				continue
			}
			if positions[i].Turn() == nchess.White {
				rec.Captured.White = popLast(rec.Captured.White)
			} else {
				rec.Captured.Black = popLast(rec.Captured.Black)
			}
		}
		rec.Moves = rec.Moves[:n-2]
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("chess_undo", zap.String("game_id", gameID), zap.Int("plies", len(rec.Moves)))
	return BuildSnapshot(rec)
}

func (s *Service) Snapshot(ctx context.Context, gameID string) (*Snapshot, error) {
	rec, err := s.store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(rec)
}

// BoardPNG renders the current position with the last move and any check marked.
func (s *Service) BoardPNG(ctx context.Context, gameID string) ([]byte, error) {
	rec, err := s.store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	game, err := replayMoves(rec.Moves)
	if err != nil {
		return nil, err
	}
	snap := snapshotFromGame(rec, game)

	opts := RenderOptions{Status: statusLine(snap), Captured: rec.Captured}
	moves := game.Moves()
	if n := len(moves); n > 0 {
		opts.Highlight = &MoveHighlight{From: moves[n-1].S1(), To: moves[n-1].S2()}
	}
	if snap.IsCheck {
		if sq, ok := kingSquare(game.Position().Board(), game.Position().Turn()); ok {
			opts.Check = &sq
		}
	}
	return s.renderer.RenderPNG(ctx, game.Position().Board(), opts)
}

// History returns the most recent archived games of a browser.
func (s *Service) History(ctx context.Context, playerID string, limit int) ([]*domain.ChessGame, error) {
	if strings.TrimSpace(playerID) == "" {
		return []*domain.ChessGame{}, nil
	}
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	playerHash := hashString(playerID)
	key := historyCacheKey(playerHash, limit)

	if s.history != nil {
		var cached []*domain.ChessGame
		found, err := s.history.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("history cache read failed", zap.Error(err))
		} else if found {
			return cached, nil
		}
	}

	games, err := s.repo.GetRecentGames(ctx, playerHash, limit)
	if err != nil {
		return nil, err
	}
	if s.history != nil {
		if err := s.history.Set(ctx, key, games, historyCacheTTL); err != nil {
			s.logger.Warn("history cache write failed", zap.Error(err))
		}
	}
	return games, nil
}

func (s *Service) engineReply(ctx context.Context, rec *GameRecord) (corechess.EvaluateResult, error) {
	evalCtx, cancel := context.WithTimeout(ctx, s.cfg.EngineTimeout)
	defer cancel()

	res, err := s.engine.Evaluate(evalCtx, corechess.EvaluateRequest{
		Moves: append([]string(nil), rec.Moves...),
	})
	if err != nil {
		s.logger.Warn("chess engine evaluation failed",
			zap.Error(err),
			zap.String("game_id", rec.ID),
			zap.Int("move_count", len(rec.Moves)),
			zap.Duration("timeout", s.cfg.EngineTimeout))
		return corechess.EvaluateResult{}, mapEngineError(err)
	}
	if strings.TrimSpace(res.BestMove) == "" {
		return corechess.EvaluateResult{}, ErrEngineUnavailable
	}
	res.BestMove = strings.ToLower(strings.TrimSpace(res.BestMove))
	return res, nil
}

// applyPly records the capture made by text (if any) and plays it on game.
func applyPly(rec *GameRecord, game *nchess.Game, text string) error {
	from, to, err := parseUCISquares(text)
	if err != nil {
		return err
	}
	pos := game.Position()
	mover := pos.Turn()
	symbol, captured := capturedBy(pos, from, to)

	if err := game.PushNotationMove(text, nchess.UCINotation{}, nil); err != nil {
		return fmt.Errorf("apply %s: %w", text, err)
	}
	rec.Moves = append(rec.Moves, text)
	if captured {
		if mover == nchess.White {
			rec.Captured.White = append(rec.Captured.White, symbol)
		} else {
			rec.Captured.Black = append(rec.Captured.Black, symbol)
		}
	}
	return nil
}

func (s *Service) archive(ctx context.Context, rec *GameRecord, game *nchess.Game, latency time.Duration) {
	now := time.Now()
	playerHash := hashString(rec.PlayerID)
	record := &domain.ChessGame{
		SessionUUID:   rec.ID,
		PlayerHash:    playerHash,
		Result:        winnerOf(game.Outcome()),
		ResultMethod:  methodName(game.Method()),
		MovesUCI:      append([]string(nil), rec.Moves...),
		MovesSAN:      sanHistory(game),
		CapturedWhite: append([]string(nil), rec.Captured.White...),
		CapturedBlack: append([]string(nil), rec.Captured.Black...),
		PGN:           game.String(),
		StartedAt:     rec.CreatedAt,
		EndedAt:       now,
		Duration:      now.Sub(rec.CreatedAt),
		EngineLatency: latency,
	}

	id, err := s.repo.InsertGame(ctx, record)
	if err != nil && !errors.Is(err, ErrDuplicateGame) {
		s.logger.Error("failed to archive chess game", zap.String("game_id", rec.ID), zap.Error(err))
		return
	}
	s.logger.Info("chess_game_finished",
		zap.String("game_id", rec.ID),
		zap.Int64("archive_id", id),
		zap.String("result", record.Result),
		zap.String("method", record.ResultMethod),
		zap.Int("plies", record.PlyCount()))

	if s.history != nil {
		if err := s.history.Del(ctx, historyCacheKeys(playerHash, s.cfg.HistoryLimit)...); err != nil {
			s.logger.Warn("history cache invalidation failed", zap.Error(err))
		}
	}
}

func mapEngineError(err error) error {
	if err == nil {
		return ErrEngineUnavailable
	}
	if corechess.IsTimeout(err) || errors.Is(err, context.Canceled) {
		return ErrEngineTimeout
	}
	return ErrEngineUnavailable
}

var (
	ecoOnce sync.Once
	ecoFind func(game *nchess.Game) (string, string)
)

func ecoLabel(game *nchess.Game) (string, string) {
	ecoOnce.Do(func() {
		book := opening.NewBookECO()
		ecoFind = func(g *nchess.Game) (string, string) {
			if book == nil {
				return "", ""
			}
			if eco := book.Find(g.Moves()); eco != nil {
				return eco.Code(), eco.Title()
			}
			return "", ""
		}
	})
	return ecoFind(game)
}

// logOpeningLabel is server-side only; the label never reaches the client.
func (s *Service) logOpeningLabel(gameID string, game *nchess.Game, moveUCI string) {
	code, title := ecoLabel(game)
	s.logger.Info("chess opening label",
		zap.String("game_id", gameID),
		zap.String("eco_code", code),
		zap.String("eco_title", title),
		zap.Int("ply", len(game.Moves())),
		zap.String("move_uci", moveUCI))
}

func statusLine(snap *Snapshot) string {
	switch snap.Winner {
	case "white":
		return "Checkmate - White wins"
	case "black":
		return "Checkmate - Black wins"
	case "draw":
		return "Draw (" + strings.ReplaceAll(snap.OutcomeMethod, "_", " ") + ")"
	}
	turn := "White to move"
	if snap.CurrentPlayer == "black" {
		turn = "Black to move"
	}
	if snap.IsCheck {
		turn += " - check"
	}
	return turn
}

func kingSquare(board *nchess.Board, color nchess.Color) (nchess.Square, bool) {
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			sq := nchess.NewSquare(file, rank)
			p := board.Piece(sq)
			if p != nchess.NoPiece && p.Type() == nchess.King && p.Color() == color {
				return sq, true
			}
		}
	}
	return 0, false
}

func popLast(list []string) []string {
	if len(list) == 0 {
		return list
	}
	return list[:len(list)-1]
}

func hashString(value string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(value)))
	return hex.EncodeToString(sum[:])
}

func historyCacheKey(playerHash string, limit int) string {
	return fmt.Sprintf("chess:web:history:%s:%d", playerHash, limit)
}

func historyCacheKeys(playerHash string, maxLimit int) []string {
	keys := make([]string, 0, maxLimit)
	for i := 1; i <= maxLimit; i++ {
		keys = append(keys, historyCacheKey(playerHash, i))
	}
	return keys
}
