package chess

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Coord addresses a square as seen by the browser: row 0 is rank 8, col 0 is file a.
type Coord struct {
	Row int
	Col int
}

func (c Coord) Valid() bool {
	return c.Row >= 0 && c.Row < 8 && c.Col >= 0 && c.Col < 8
}

func (c Coord) square() nchess.Square {
	return nchess.NewSquare(nchess.File(c.Col), nchess.Rank(7-c.Row))
}

func coordOf(sq nchess.Square) Coord {
	return Coord{Row: 7 - int(sq.Rank()), Col: int(sq.File())}
}

// squareName renders a square in coordinate notation ("e4").
func squareName(sq nchess.Square) string {
	return string(rune('a'+int(sq.File()))) + string(rune('1'+int(sq.Rank())))
}

func replayMoves(moves []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for _, mv := range moves {
		text := strings.ToLower(strings.TrimSpace(mv))
		if err := game.PushNotationMove(text, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %s: %w", mv, err)
		}
	}
	return game, nil
}

func pieceSymbol(p nchess.Piece) string {
	var s string
	switch p.Type() {
	case nchess.King:
		s = "k"
	case nchess.Queen:
		s = "q"
	case nchess.Rook:
		s = "r"
	case nchess.Bishop:
		s = "b"
	case nchess.Knight:
		s = "n"
	case nchess.Pawn:
		s = "p"
	default:
		return ""
	}
	if p.Color() == nchess.White {
		return strings.ToUpper(s)
	}
	return s
}

func colorName(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "white"
	case nchess.Black:
		return "black"
	default:
		return ""
	}
}

// resolveMove builds the UCI text for from->to in the current position,
// promoting to a queen when a pawn reaches the last rank. ok is false when
// no legal move matches.
func resolveMove(game *nchess.Game, from, to nchess.Square) (string, bool) {
	pos := game.Position()
	piece := pos.Board().Piece(from)
	if piece == nchess.NoPiece {
		return "", false
	}
	text := squareName(from) + squareName(to)
	if piece.Type() == nchess.Pawn && (to.Rank() == nchess.Rank8 || to.Rank() == nchess.Rank1) {
		text += "q"
	}
	for _, mv := range game.ValidMoves() {
		if mv.S1() != from || mv.S2() != to {
			continue
		}
		if mv.Promo() != nchess.NoPieceType && mv.Promo() != nchess.Queen {
			continue
		}
		return text, true
	}
	return "", false
}

// capturedBy reports the symbol of the piece that from->to removes from the
// board, looking at the position before the move. For en passant the victim
// sits beside the origin square, on the destination file.
func capturedBy(pos *nchess.Position, from, to nchess.Square) (string, bool) {
	board := pos.Board()
	if victim := board.Piece(to); victim != nchess.NoPiece {
		return pieceSymbol(victim), true
	}
	mover := board.Piece(from)
	if mover == nchess.NoPiece || mover.Type() != nchess.Pawn || from.File() == to.File() {
		return "", false
	}
	victim := board.Piece(nchess.NewSquare(to.File(), from.Rank()))
	if victim == nchess.NoPiece {
		return "", false
	}
	return pieceSymbol(victim), true
}

// destinations lists the targets of legal moves starting on from. Several
// promotion moves share a target, so duplicates are collapsed.
func destinations(game *nchess.Game, from nchess.Square) []Coord {
	seen := make(map[nchess.Square]bool)
	out := make([]Coord, 0, 8)
	for _, mv := range game.ValidMoves() {
		if mv.S1() != from || seen[mv.S2()] {
			continue
		}
		seen[mv.S2()] = true
		out = append(out, coordOf(mv.S2()))
	}
	return out
}

func parseUCISquares(text string) (nchess.Square, nchess.Square, error) {
	if len(text) < 4 {
		return 0, 0, fmt.Errorf("short uci move %q", text)
	}
	parse := func(s string) (nchess.Square, error) {
		f, r := s[0], s[1]
		if f < 'a' || f > 'h' || r < '1' || r > '8' {
			return 0, fmt.Errorf("bad square %q", s)
		}
		return nchess.NewSquare(nchess.File(f-'a'), nchess.Rank(r-'1')), nil
	}
	from, err := parse(text[0:2])
	if err != nil {
		return 0, 0, err
	}
	to, err := parse(text[2:4])
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}
