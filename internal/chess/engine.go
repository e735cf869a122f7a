package chess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-web/internal/chess/uci"
)

type EngineConfig struct {
	BinaryPath string
	PoolSize   int
	Threads    int
	HashMB     int
	Budget     SearchBudget
	Logger     *zap.Logger
}

// Engine answers "what would Stockfish play here" using a pool of processes.
type Engine struct {
	pool   *uci.Pool
	budget SearchBudget
	logger *zap.Logger
}

type EvaluateRequest struct {
	FEN   string
	Moves []string
}

type EvaluateResult struct {
	BestMove  string
	EvalCP    int
	Principal []string
	Duration  time.Duration
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	budget := cfg.Budget
	if budget == (SearchBudget{}) {
		budget = DefaultBudget()
	}
	if err := ValidateBudget(budget); err != nil {
		return nil, err
	}
	hash := cfg.HashMB
	if hash <= 0 {
		hash = 16
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath: cfg.BinaryPath,
		Capacity:   cfg.PoolSize,
		Options:    uci.Options{Threads: cfg.Threads, HashMB: hash, SkillLevel: 20},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return &Engine{pool: pool, budget: budget, logger: logger}, nil
}

// Warmup launches one process and returns it to the pool, proving the binary speaks UCI.
func (e *Engine) Warmup(ctx context.Context) error {
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	e.pool.Release(session, nil)
	return nil
}

// Evaluate returns the engine's choice for the side to move after Moves.
func (e *Engine) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResult, error) {
	start := time.Now()

	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return EvaluateResult{}, err
	}
	var releaseErr error
	defer func() {
		e.pool.Release(session, releaseErr)
	}()

	if len(req.Moves) == 0 {
		if err := session.NewGame(ctx); err != nil {
			releaseErr = err
			return EvaluateResult{}, err
		}
	}

	resp, err := session.Search(ctx, uci.SearchRequest{
		FEN:    req.FEN,
		Moves:  req.Moves,
		Limits: limitsFromBudget(e.budget),
	})
	if err != nil {
		releaseErr = err
		return EvaluateResult{}, err
	}

	dur := time.Since(start)
	e.logger.Debug("engine_reply",
		zap.String("best_move", resp.BestMove),
		zap.Int("eval_cp", resp.EvalCP),
		zap.Duration("duration", dur))

	return EvaluateResult{
		BestMove:  resp.BestMove,
		EvalCP:    resp.EvalCP,
		Principal: resp.Principal,
		Duration:  dur,
	}, nil
}

// IsTimeout reports whether err came from a search deadline rather than a crashed process.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) Budget() SearchBudget { return e.budget }

func (e *Engine) Close() error {
	if e.pool == nil {
		return nil
	}
	if err := e.pool.Close(); err != nil {
		return fmt.Errorf("close engine pool: %w", err)
	}
	return nil
}
