package chessbuilder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	corechess "github.com/park285/chess-web/internal/chess"
	"github.com/park285/chess-web/internal/config"
	"github.com/park285/chess-web/internal/service/cache"
	svcchess "github.com/park285/chess-web/internal/service/chess"
)

const warmupTimeout = 10 * time.Second

// Deps owns everything New started; Close releases it in reverse order.
type Deps struct {
	Service *svcchess.Service
	Engine  *corechess.Engine
	Store   svcchess.Store
	Cache   *cache.CacheService
	Repo    svcchess.Repository
	DB      *sql.DB
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (_ *Deps, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.StockfishPath) == "" {
		return nil, fmt.Errorf("STOCKFISH_PATH is required: %w", svcchess.ErrEngineUnavailable)
	}

	// failure paths return nil, so the partial set is closed through d
	d := &Deps{}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	budget := corechess.SearchBudget{MoveTime: time.Duration(cfg.ChessMoveTimeMS) * time.Millisecond}
	d.Engine, err = corechess.NewEngine(corechess.EngineConfig{
		BinaryPath: cfg.StockfishPath,
		PoolSize:   cfg.EnginePoolSize,
		Threads:    cfg.EngineThreads,
		HashMB:     cfg.EngineHashMB,
		Budget:     budget,
		Logger:     logger.Named("engine"),
	})
	if err != nil {
		return nil, fmt.Errorf("init engine: %w: %w", svcchess.ErrEngineUnavailable, err)
	}
	wctx, cancel := context.WithTimeout(ctx, warmupTimeout)
	err = d.Engine.Warmup(wctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("engine warmup: %w: %w", svcchess.ErrEngineUnavailable, err)
	}

	ttl := time.Duration(cfg.ChessSessionTTLSec) * time.Second
	if strings.TrimSpace(cfg.RedisURL) != "" {
		cconf, perr := parseRedisURL(cfg.RedisURL)
		if perr != nil {
			return nil, fmt.Errorf("parse redis url: %w", perr)
		}
		d.Cache, err = cache.NewCacheService(*cconf, logger)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		d.Store = svcchess.NewRedisStore(d.Cache, ttl, logger)
		logger.Info("session_store", zap.String("backend", "redis"), zap.String("addr", cconf.Addr()))
	} else {
		mem := svcchess.NewMemoryStore(ttl, logger)
		mem.StartJanitor(time.Minute)
		d.Store = mem
		logger.Info("session_store", zap.String("backend", "memory"), zap.Duration("ttl", ttl))
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		d.DB, err = openPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err = svcchess.EnsureSchema(ctx, d.DB); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		d.Repo = svcchess.NewRepository(d.DB)
	} else {
		d.Repo = svcchess.NewMemoryRepository()
		logger.Info("game_archive", zap.String("backend", "memory"))
	}

	svcCfg := svcchess.Config{
		HistoryLimit:  cfg.ChessHistoryLimit,
		EngineTimeout: engineTimeout(budget.MoveTime),
	}
	d.Service, err = svcchess.NewService(d.Engine, d.Store, d.Repo, svcchess.NewSVGBoardRenderer(), svcCfg, logger)
	if err != nil {
		return nil, err
	}
	if d.Cache != nil {
		d.Service.UseHistoryCache(d.Cache)
	}
	return d, nil
}

// Close stops the janitor, the engine pool and the backing connections.
func (d *Deps) Close() {
	if d == nil {
		return
	}
	if d.Store != nil {
		_ = d.Store.Close()
		if mem, ok := d.Store.(*svcchess.MemoryStore); ok {
			mem.Wait()
		}
	}
	if d.Engine != nil {
		_ = d.Engine.Close()
	}
	if d.Cache != nil {
		_ = d.Cache.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// engineTimeout leaves room for process startup on top of the search itself.
func engineTimeout(moveTime time.Duration) time.Duration {
	if moveTime <= 0 {
		moveTime = corechess.DefaultMoveTime
	}
	return moveTime*2 + 5*time.Second
}

func parseRedisURL(raw string) (*cache.CacheConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, errors.New("redis host is empty")
	}
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &cache.CacheConfig{Host: host, Port: port, Password: pass, DB: db}, nil
}
