package chessdto

type CapturedPieces struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

// LastMove squares are [row, col] pairs, row 0 being rank 8.
type LastMove struct {
	From [2]int `json:"from"`
	To   [2]int `json:"to"`
}

// GameState is the board snapshot sent to the browser. Empty squares are null.
type GameState struct {
	Board          [][]*string    `json:"board"`
	CurrentPlayer  string         `json:"current_player"`
	GameOver       bool           `json:"game_over"`
	Winner         *string        `json:"winner"`
	MoveHistory    []string       `json:"move_history"`
	CapturedPieces CapturedPieces `json:"captured_pieces"`
	LastMove       *LastMove      `json:"last_move"`
	IsCheck        bool           `json:"is_check"`
	OutcomeMethod  string         `json:"outcome_method,omitempty"`
	FEN            string         `json:"fen,omitempty"`
}

// PieceAt returns the symbol on row/col, or "" for an empty or out of range square.
func (s *GameState) PieceAt(row, col int) string {
	if s == nil || row < 0 || row >= len(s.Board) || col < 0 || col >= len(s.Board[row]) {
		return ""
	}
	if p := s.Board[row][col]; p != nil {
		return *p
	}
	return ""
}
