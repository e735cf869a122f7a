package webapi

import (
	"github.com/park285/chess-web/internal/domain"
	svc "github.com/park285/chess-web/internal/service/chess"
	"github.com/park285/chess-web/pkg/chessdto"
)

func toGameState(s *svc.Snapshot) *chessdto.GameState {
	if s == nil {
		return nil
	}
	board := make([][]*string, 8)
	for row := range board {
		board[row] = make([]*string, 8)
		for col := range board[row] {
			if sym := s.Board[row][col]; sym != "" {
				v := sym
				board[row][col] = &v
			}
		}
	}
	state := &chessdto.GameState{
		Board:          board,
		CurrentPlayer:  s.CurrentPlayer,
		GameOver:       s.GameOver,
		MoveHistory:    append([]string{}, s.MoveHistory...),
		CapturedPieces: toDTOCaptured(s.Captured),
		IsCheck:        s.IsCheck,
		OutcomeMethod:  s.OutcomeMethod,
		FEN:            s.FEN,
	}
	if s.Winner != "" {
		w := s.Winner
		state.Winner = &w
	}
	if s.LastMove != nil {
		state.LastMove = &chessdto.LastMove{
			From: [2]int{s.LastMove.From.Row, s.LastMove.From.Col},
			To:   [2]int{s.LastMove.To.Row, s.LastMove.To.Col},
		}
	}
	return state
}

func toDTOCaptured(c svc.CapturedPieces) chessdto.CapturedPieces {
	return chessdto.CapturedPieces{
		White: append([]string{}, c.White...),
		Black: append([]string{}, c.Black...),
	}
}

func toValidMoves(list []svc.Coord) [][2]int {
	out := make([][2]int, 0, len(list))
	for _, c := range list {
		out = append(out, [2]int{c.Row, c.Col})
	}
	return out
}

func toHistoryGames(list []*domain.ChessGame) []*chessdto.HistoryGame {
	out := make([]*chessdto.HistoryGame, 0, len(list))
	for _, g := range list {
		if g == nil {
			continue
		}
		out = append(out, &chessdto.HistoryGame{
			ID:            g.ID,
			GameID:        g.SessionUUID,
			Result:        g.Result,
			ResultMethod:  g.ResultMethod,
			MovesSAN:      append([]string{}, g.MovesSAN...),
			PGN:           g.PGN,
			StartedAt:     g.StartedAt,
			EndedAt:       g.EndedAt,
			DurationSec:   g.Duration.Seconds(),
			EngineLatency: g.EngineLatency.Milliseconds(),
		})
	}
	return out
}
