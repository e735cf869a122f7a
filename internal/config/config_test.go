package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"LISTEN_ADDR", "STOCKFISH_PATH", "REDIS_URL", "DATABASE_URL", "CHESS_MOVE_TIME_MS", "CHESS_SESSION_TTL", "COOKIE_SECURE"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":5000" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.StockfishPath != defaultStockfishPath {
		t.Fatalf("stockfish path = %q", cfg.StockfishPath)
	}
	if cfg.ChessMoveTimeMS != 500 {
		t.Fatalf("move time = %d", cfg.ChessMoveTimeMS)
	}
	if cfg.ChessSessionTTLSec != 86400 {
		t.Fatalf("session ttl = %d", cfg.ChessSessionTTLSec)
	}
	if cfg.RedisURL != "" || cfg.DatabaseURL != "" {
		t.Fatalf("expected empty backends, got redis=%q db=%q", cfg.RedisURL, cfg.DatabaseURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "127.0.0.1:8080")
	t.Setenv("STOCKFISH_PATH", "/opt/sf")
	t.Setenv("CHESS_MOVE_TIME_MS", "250")
	t.Setenv("CHESS_ENGINE_POOL", "3")
	t.Setenv("CHESS_SESSION_TTL", "-5")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:8080" || cfg.StockfishPath != "/opt/sf" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.ChessMoveTimeMS != 250 || cfg.EnginePoolSize != 3 {
		t.Fatalf("unexpected engine cfg: %+v", cfg)
	}
	if cfg.ChessSessionTTLSec != 86400 {
		t.Fatalf("negative ttl should be ignored, got %d", cfg.ChessSessionTTLSec)
	}
	if !cfg.CookieSecure {
		t.Fatalf("expected secure cookies")
	}
}
