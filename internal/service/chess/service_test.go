package chess

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"sync"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corechess "github.com/park285/chess-web/internal/chess"
)

// scriptedEngine answers with queued moves in order; an empty queue or a
// queued error fails the evaluation.
type scriptedEngine struct {
	mu    sync.Mutex
	moves []string
	err   error
	calls [][]string
}

func (e *scriptedEngine) Evaluate(_ context.Context, req corechess.EvaluateRequest) (corechess.EvaluateResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, append([]string(nil), req.Moves...))
	if e.err != nil {
		return corechess.EvaluateResult{}, e.err
	}
	if len(e.moves) == 0 {
		return corechess.EvaluateResult{}, errors.New("script exhausted")
	}
	mv := e.moves[0]
	e.moves = e.moves[1:]
	return corechess.EvaluateResult{BestMove: mv, Duration: 3 * time.Millisecond}, nil
}

func (e *scriptedEngine) queue(moves ...string) {
	e.mu.Lock()
	e.moves = append(e.moves, moves...)
	e.mu.Unlock()
}

func at(name string) Coord {
	return Coord{Row: 7 - int(name[1]-'1'), Col: int(name[0] - 'a')}
}

type fixture struct {
	svc    *Service
	engine *scriptedEngine
	store  *MemoryStore
	repo   Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine := &scriptedEngine{}
	store := NewMemoryStore(time.Hour, nil)
	repo := NewMemoryRepository()
	svc, err := NewService(engine, store, repo, NewSVGBoardRenderer(), Config{EngineTimeout: time.Second}, nil)
	require.NoError(t, err)
	return &fixture{svc: svc, engine: engine, store: store, repo: repo}
}

func (f *fixture) play(t *testing.T, id, from, to string) *MoveResult {
	t.Helper()
	res, err := f.svc.SubmitMove(context.Background(), id, at(from), at(to))
	require.NoError(t, err)
	return res
}

func TestNewGameStartPosition(t *testing.T) {
	f := newFixture(t)
	snap, err := f.svc.NewGame(context.Background(), "browser-1")
	require.NoError(t, err)

	assert.NotEmpty(t, snap.GameID)
	assert.Equal(t, "white", snap.CurrentPlayer)
	assert.False(t, snap.GameOver)
	assert.Empty(t, snap.Winner)
	assert.Empty(t, snap.MoveHistory)
	assert.Nil(t, snap.LastMove)
	assert.False(t, snap.IsCheck)
	assert.Equal(t, "r", snap.Board[0][0])
	assert.Equal(t, "k", snap.Board[0][4])
	assert.Equal(t, "P", snap.Board[6][4])
	assert.Equal(t, "K", snap.Board[7][4])
	assert.Equal(t, "", snap.Board[4][4])
	assert.Equal(t, 0, snap.Captured.Total())
}

func TestSubmitMoveAppliesEngineReply(t *testing.T) {
	f := newFixture(t)
	snap, err := f.svc.NewGame(context.Background(), "p")
	require.NoError(t, err)
	f.engine.queue("e7e5")

	res := f.play(t, snap.GameID, "e2", "e4")
	assert.Equal(t, "e2e4", res.PlayerMove)
	assert.Equal(t, "e7e5", res.EngineMove)
	assert.True(t, res.EngineMoved)
	assert.Equal(t, []string{"e4", "e5"}, res.Snapshot.MoveHistory)
	assert.Equal(t, "white", res.Snapshot.CurrentPlayer)
	require.NotNil(t, res.Snapshot.LastMove)
	assert.Equal(t, at("e7"), res.Snapshot.LastMove.From)
	assert.Equal(t, at("e5"), res.Snapshot.LastMove.To)

	require.Len(t, f.engine.calls, 1)
	assert.Equal(t, []string{"e2e4"}, f.engine.calls[0])
}

func TestFoolsMateEndsAndArchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, err := f.svc.NewGame(ctx, "fool")
	require.NoError(t, err)
	f.engine.queue("e7e5", "d8h4")

	f.play(t, snap.GameID, "f2", "f3")
	res := f.play(t, snap.GameID, "g2", "g4")

	got := res.Snapshot
	assert.Equal(t, []string{"f3", "e5", "g4", "Qh4#"}, got.MoveHistory)
	assert.True(t, got.GameOver)
	assert.Equal(t, "black", got.Winner)
	assert.Equal(t, "checkmate", got.OutcomeMethod)
	assert.True(t, got.IsCheck)

	games, err := f.svc.History(ctx, "fool", 5)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, snap.GameID, games[0].SessionUUID)
	assert.Equal(t, "black", games[0].Result)
	assert.Equal(t, "checkmate", games[0].ResultMethod)
	assert.Equal(t, []string{"f2f3", "e7e5", "g2g4", "d8h4"}, games[0].MovesUCI)

	_, err = f.svc.SubmitMove(ctx, snap.GameID, at("a2"), at("a3"))
	assert.ErrorIs(t, err, ErrInvalidMove)

	dests, err := f.svc.LegalDestinations(ctx, snap.GameID, at("a2"))
	require.NoError(t, err)
	assert.Empty(t, dests)
}

func TestUndoRestoresPreviousTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, err := f.svc.NewGame(ctx, "p")
	require.NoError(t, err)
	f.engine.queue("e7e5", "b8c6")

	first := f.play(t, snap.GameID, "e2", "e4").Snapshot
	f.play(t, snap.GameID, "g1", "f3")

	undone, err := f.svc.Undo(ctx, snap.GameID)
	require.NoError(t, err)
	assert.Equal(t, first.Board, undone.Board)
	assert.Equal(t, first.MoveHistory, undone.MoveHistory)
	assert.Equal(t, first.FEN, undone.FEN)
	assert.Equal(t, "white", undone.CurrentPlayer)
}

func TestUndoNeedsTwoPlies(t *testing.T) {
	f := newFixture(t)
	snap, err := f.svc.NewGame(context.Background(), "p")
	require.NoError(t, err)

	_, err = f.svc.Undo(context.Background(), snap.GameID)
	assert.ErrorIs(t, err, ErrUndoNotAvailable)
}

func TestCapturesTrackedAndUndone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, err := f.svc.NewGame(ctx, "p")
	require.NoError(t, err)
	// 1.e4 d5 2.exd5 Qxd5
	f.engine.queue("d7d5", "d8d5")

	f.play(t, snap.GameID, "e2", "e4")
	res := f.play(t, snap.GameID, "e4", "d5")
	assert.Equal(t, []string{"p"}, res.Snapshot.Captured.White)
	assert.Equal(t, []string{"P"}, res.Snapshot.Captured.Black)

	undone, err := f.svc.Undo(ctx, snap.GameID)
	require.NoError(t, err)
	assert.Empty(t, undone.Captured.White)
	assert.Empty(t, undone.Captured.Black)
}

func TestEnPassantCapturesPawn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, err := f.svc.NewGame(ctx, "p")
	require.NoError(t, err)
	f.engine.queue("a7a6", "d7d5", "a6a5")

	f.play(t, snap.GameID, "e2", "e4")
	f.play(t, snap.GameID, "e4", "e5")
	res := f.play(t, snap.GameID, "e5", "d6")

	assert.Equal(t, []string{"p"}, res.Snapshot.Captured.White)
	assert.Empty(t, res.Snapshot.Captured.Black)
	assert.Equal(t, "", res.Snapshot.Board[at("d5").Row][at("d5").Col])
	assert.Equal(t, "P", res.Snapshot.Board[at("d6").Row][at("d6").Col])

	undone, err := f.svc.Undo(ctx, snap.GameID)
	require.NoError(t, err)
	assert.Empty(t, undone.Captured.White)
	assert.Equal(t, "p", undone.Board[at("d5").Row][at("d5").Col])
}

func TestPawnPromotesToQueen(t *testing.T) {
	f := newFixture(t)
	snap, err := f.svc.NewGame(context.Background(), "p")
	require.NoError(t, err)
	f.engine.queue("g7g5", "a7a6", "a6a5", "a5a4", "a4a3")

	f.play(t, snap.GameID, "h2", "h4")
	f.play(t, snap.GameID, "h4", "g5")
	f.play(t, snap.GameID, "g5", "g6")
	f.play(t, snap.GameID, "g6", "h7")
	res := f.play(t, snap.GameID, "h7", "g8")

	assert.Equal(t, "h7g8q", res.PlayerMove)
	got := res.Snapshot
	assert.Equal(t, "Q", got.Board[0][6])
	assert.Equal(t, "hxg8=Q", got.MoveHistory[8])
	assert.Equal(t, []string{"p", "p", "n"}, got.Captured.White)
	assert.Empty(t, got.Captured.Black)
	assert.False(t, got.GameOver)
}

func TestStalemateIsDraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, err := f.svc.NewGame(ctx, "stale")
	require.NoError(t, err)
	f.engine.queue("a7a5", "a8a6", "h7h5", "a6h6", "f7f6", "e8f7", "d8d3", "d3h7", "f7g6")

	var res *MoveResult
	for _, mv := range [][2]string{
		{"e2", "e3"}, {"d1", "h5"}, {"h5", "a5"}, {"h2", "h4"}, {"a5", "c7"},
		{"c7", "d7"}, {"d7", "b7"}, {"b7", "b8"}, {"b8", "c8"}, {"c8", "e6"},
	} {
		res = f.play(t, snap.GameID, mv[0], mv[1])
	}

	got := res.Snapshot
	assert.False(t, res.EngineMoved)
	assert.Len(t, f.engine.calls, 9)
	assert.True(t, got.GameOver)
	assert.Equal(t, "draw", got.Winner)
	assert.Equal(t, "stalemate", got.OutcomeMethod)
	assert.False(t, got.IsCheck)
	assert.Equal(t, []string{"p", "p", "p", "p", "n", "b"}, got.Captured.White)
	assert.Equal(t, "Draw (stalemate)", statusLine(got))

	games, err := f.svc.History(ctx, "stale", 5)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "draw", games[0].Result)
	assert.Equal(t, "stalemate", games[0].ResultMethod)
}

func TestMethodName(t *testing.T) {
	cases := map[nchess.Method]string{
		nchess.Checkmate:            "checkmate",
		nchess.Stalemate:            "stalemate",
		nchess.FivefoldRepetition:   "fivefold_repetition",
		nchess.SeventyFiveMoveRule:  "seventy_five_move_rule",
		nchess.InsufficientMaterial: "insufficient_material",
		nchess.NoMethod:             "",
	}
	for m, want := range cases {
		assert.Equal(t, want, methodName(m))
	}
}

func TestIllegalMoveLeavesGameUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, err := f.svc.NewGame(ctx, "p")
	require.NoError(t, err)

	cases := [][2]string{
		{"e2", "e5"}, // too far
		{"e4", "e5"}, // empty origin
		{"e7", "e5"}, // opponent piece
	}
	for _, c := range cases {
		_, err := f.svc.SubmitMove(ctx, snap.GameID, at(c[0]), at(c[1]))
		assert.ErrorIs(t, err, ErrInvalidMove, "%s-%s", c[0], c[1])
	}
	_, err = f.svc.SubmitMove(ctx, snap.GameID, Coord{Row: 8, Col: 0}, at("e4"))
	assert.ErrorIs(t, err, ErrInvalidMove)

	after, err := f.svc.Snapshot(ctx, snap.GameID)
	require.NoError(t, err)
	assert.Equal(t, snap.FEN, after.FEN)
	assert.Empty(t, after.MoveHistory)
	assert.Empty(t, f.engine.calls)
}

func TestEngineFailureRollsBack(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "crash", err: errors.New("broken pipe"), want: ErrEngineUnavailable},
		{name: "timeout", err: context.DeadlineExceeded, want: ErrEngineTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			snap, err := f.svc.NewGame(ctx, "p")
			require.NoError(t, err)
			f.engine.err = tt.err

			_, err = f.svc.SubmitMove(ctx, snap.GameID, at("e2"), at("e4"))
			assert.ErrorIs(t, err, tt.want)

			after, err := f.svc.Snapshot(ctx, snap.GameID)
			require.NoError(t, err)
			assert.Empty(t, after.MoveHistory)
			assert.Equal(t, "white", after.CurrentPlayer)
		})
	}
}

func TestEngineIllegalReplyRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, err := f.svc.NewGame(ctx, "p")
	require.NoError(t, err)
	f.engine.queue("e2e4")

	_, err = f.svc.SubmitMove(ctx, snap.GameID, at("d2"), at("d4"))
	assert.ErrorIs(t, err, ErrEngineUnavailable)

	after, err := f.svc.Snapshot(ctx, snap.GameID)
	require.NoError(t, err)
	assert.Empty(t, after.MoveHistory)
}

func TestLegalDestinations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, err := f.svc.NewGame(ctx, "p")
	require.NoError(t, err)

	dests, err := f.svc.LegalDestinations(ctx, snap.GameID, at("e2"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []Coord{at("e3"), at("e4")}, dests)

	dests, err = f.svc.LegalDestinations(ctx, snap.GameID, at("g1"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []Coord{at("f3"), at("h3")}, dests)

	dests, err = f.svc.LegalDestinations(ctx, snap.GameID, at("e4"))
	require.NoError(t, err)
	assert.NotNil(t, dests)
	assert.Empty(t, dests)

	// no ownership filter; the rules library only reports moves for the side to move
	dests, err = f.svc.LegalDestinations(ctx, snap.GameID, at("e7"))
	require.NoError(t, err)
	assert.Empty(t, dests)
}

func TestUnknownGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Snapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.svc.SubmitMove(ctx, "missing", at("e2"), at("e4"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.svc.Undo(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	dests, err := f.svc.LegalDestinations(ctx, "missing", at("e2"))
	require.NoError(t, err)
	assert.Empty(t, dests)
}

func TestBoardPNG(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap, err := f.svc.NewGame(ctx, "p")
	require.NoError(t, err)
	f.engine.queue("e7e5")
	f.play(t, snap.GameID, "e2", "e4")

	data, err := f.svc.BoardPNG(ctx, snap.GameID)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, boardPixels+boardMargin*2, img.Bounds().Dx())
}

func TestHistoryEmptyPlayer(t *testing.T) {
	f := newFixture(t)
	games, err := f.svc.History(context.Background(), "  ", 5)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "White to move", statusLine(&Snapshot{CurrentPlayer: "white"}))
	assert.Equal(t, "Black to move - check", statusLine(&Snapshot{CurrentPlayer: "black", IsCheck: true}))
	assert.Equal(t, "Checkmate - Black wins", statusLine(&Snapshot{Winner: "black"}))
	assert.Equal(t, "Draw (insufficient material)", statusLine(&Snapshot{Winner: "draw", OutcomeMethod: methodName(nchess.InsufficientMaterial)}))
}
