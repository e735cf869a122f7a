package chessdto

// Every response carries Success; failed calls set Error instead of the payload.

type NewGameResponse struct {
	Success   bool       `json:"success"`
	GameID    string     `json:"game_id,omitempty"`
	GameState *GameState `json:"game_state,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type MoveResponse struct {
	Success   bool       `json:"success"`
	GameState *GameState `json:"game_state,omitempty"`
	AIMoved   bool       `json:"ai_moved"`
	Error     string     `json:"error,omitempty"`
}

type ValidMovesResponse struct {
	Success    bool     `json:"success"`
	ValidMoves [][2]int `json:"valid_moves"`
	Error      string   `json:"error,omitempty"`
}

// StateResponse answers both undo and game_state.
type StateResponse struct {
	Success   bool       `json:"success"`
	GameState *GameState `json:"game_state,omitempty"`
	Error     string     `json:"error,omitempty"`
}
