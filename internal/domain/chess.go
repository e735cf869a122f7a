package domain

import "time"

// ChessGame is an archived, finished game.
type ChessGame struct {
	ID            int64
	SessionUUID   string
	PlayerHash    string
	Result        string // white | black | draw
	ResultMethod  string
	MovesUCI      []string
	MovesSAN      []string
	CapturedWhite []string
	CapturedBlack []string
	PGN           string
	StartedAt     time.Time
	EndedAt       time.Time
	Duration      time.Duration
	EngineLatency time.Duration
}

func (g *ChessGame) PlyCount() int {
	if g == nil {
		return 0
	}
	return len(g.MovesUCI)
}
