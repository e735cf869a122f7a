package chess

import "time"

// CapturedPieces lists symbols captured by each side, in capture order.
type CapturedPieces struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

func (c CapturedPieces) Total() int {
	return len(c.White) + len(c.Black)
}

// GameRecord is the persisted state of one browser game. The position is
// never stored; it is rebuilt by replaying Moves from the start position.
type GameRecord struct {
	ID        string         `json:"id"`
	PlayerID  string         `json:"player_id"`
	Moves     []string       `json:"moves"`
	Captured  CapturedPieces `json:"captured"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Archived  bool           `json:"archived,omitempty"`
}

func (r *GameRecord) clone() *GameRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Moves = append([]string{}, r.Moves...)
	c.Captured = CapturedPieces{
		White: append([]string{}, r.Captured.White...),
		Black: append([]string{}, r.Captured.Black...),
	}
	return &c
}
