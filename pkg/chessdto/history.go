package chessdto

import "time"

type HistoryGame struct {
	ID            int64     `json:"id"`
	GameID        string    `json:"game_id"`
	Result        string    `json:"result"`
	ResultMethod  string    `json:"result_method"`
	MovesSAN      []string  `json:"moves_san"`
	PGN           string    `json:"pgn"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	DurationSec   float64   `json:"duration_sec"`
	EngineLatency int64     `json:"engine_latency_ms"`
}

type HistoryResponse struct {
	Success bool           `json:"success"`
	Games   []*HistoryGame `json:"games"`
	Error   string         `json:"error,omitempty"`
}
