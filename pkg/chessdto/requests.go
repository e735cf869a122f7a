package chessdto

type MoveRequest struct {
	FromRow int `json:"from_row"`
	FromCol int `json:"from_col"`
	ToRow   int `json:"to_row"`
	ToCol   int `json:"to_col"`
}

type ValidMovesRequest struct {
	Row int `json:"row"`
	Col int `json:"col"`
}
