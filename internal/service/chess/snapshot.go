package chess

import (
	nchess "github.com/corentings/chess/v2"
)

type LastMove struct {
	From Coord
	To   Coord
}

// Snapshot is the client-facing view of a game, derived purely from a GameRecord.
type Snapshot struct {
	GameID        string
	Board         [8][8]string // "" marks an empty square
	CurrentPlayer string
	GameOver      bool
	Winner        string // white | black | draw | ""
	OutcomeMethod string
	MoveHistory   []string
	Captured      CapturedPieces
	LastMove      *LastMove
	IsCheck       bool
	FEN           string
}

func BuildSnapshot(rec *GameRecord) (*Snapshot, error) {
	game, err := replayMoves(rec.Moves)
	if err != nil {
		return nil, err
	}
	return snapshotFromGame(rec, game), nil
}

func snapshotFromGame(rec *GameRecord, game *nchess.Game) *Snapshot {
	pos := game.Position()
	board := pos.Board()

	snap := &Snapshot{
		GameID:        rec.ID,
		CurrentPlayer: colorName(pos.Turn()),
		MoveHistory:   sanHistory(game),
		Captured: CapturedPieces{
			White: append([]string{}, rec.Captured.White...),
			Black: append([]string{}, rec.Captured.Black...),
		},
		FEN: game.FEN(),
	}
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			if p := board.Piece(Coord{Row: row, Col: col}.square()); p != nchess.NoPiece {
				snap.Board[row][col] = pieceSymbol(p)
			}
		}
	}

	snap.Winner = winnerOf(game.Outcome())
	snap.GameOver = snap.Winner != ""
	if snap.GameOver {
		snap.OutcomeMethod = methodName(game.Method())
	}

	moves := game.Moves()
	if n := len(moves); n > 0 {
		last := moves[n-1]
		snap.LastMove = &LastMove{From: coordOf(last.S1()), To: coordOf(last.S2())}
		snap.IsCheck = last.HasTag(nchess.Check)
	}
	return snap
}

// methodName is the wire form of how a game ended.
func methodName(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Resignation:
		return "resignation"
	case nchess.DrawOffer:
		return "draw_offer"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.ThreefoldRepetition:
		return "threefold_repetition"
	case nchess.FivefoldRepetition:
		return "fivefold_repetition"
	case nchess.FiftyMoveRule:
		return "fifty_move_rule"
	case nchess.SeventyFiveMoveRule:
		return "seventy_five_move_rule"
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	default:
		return ""
	}
}

// sanHistory re-encodes every move against the position it was played from.
func sanHistory(game *nchess.Game) []string {
	positions := game.Positions()
	moves := game.Moves()
	out := make([]string, 0, len(moves))
	notation := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		out = append(out, notation.Encode(positions[i], mv))
	}
	return out
}

func winnerOf(outcome nchess.Outcome) string {
	switch outcome {
	case nchess.WhiteWon:
		return "white"
	case nchess.BlackWon:
		return "black"
	case nchess.Draw:
		return "draw"
	default:
		return ""
	}
}
