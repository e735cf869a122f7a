package webapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-web/internal/domain"
	"github.com/park285/chess-web/internal/msgcat"
	svc "github.com/park285/chess-web/internal/service/chess"
	"github.com/park285/chess-web/pkg/chessdto"
)

const (
	GameCookie   = "chess_game"
	PlayerCookie = "chess_player"

	playerCookieMaxAge = 365 * 24 * 60 * 60
	contentTypeJSON    = "application/json; charset=utf-8"
)

//go:embed static/index.html
var indexPage []byte

// GameService is the part of the chess service the HTTP layer drives.
type GameService interface {
	NewGame(ctx context.Context, playerID string) (*svc.Snapshot, error)
	SubmitMove(ctx context.Context, gameID string, from, to svc.Coord) (*svc.MoveResult, error)
	LegalDestinations(ctx context.Context, gameID string, from svc.Coord) ([]svc.Coord, error)
	Undo(ctx context.Context, gameID string) (*svc.Snapshot, error)
	Snapshot(ctx context.Context, gameID string) (*svc.Snapshot, error)
	BoardPNG(ctx context.Context, gameID string) ([]byte, error)
	History(ctx context.Context, playerID string, limit int) ([]*domain.ChessGame, error)
}

type Options struct {
	SecureCookies bool
	// GameCookieMaxAge is in seconds; zero makes chess_game a browser-session cookie.
	GameCookieMaxAge int
}

type Handler struct {
	games  GameService
	msgs   *msgcat.Catalog
	opts   Options
	logger *zap.Logger
}

func NewHandler(games GameService, msgs *msgcat.Catalog, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{games: games, msgs: msgs, opts: opts, logger: logger}
}

// Handle routes every request. fasthttp has no mux, so paths are matched directly.
func (h *Handler) Handle(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	path := string(ctx.Path())

	switch path {
	case "/":
		if h.allow(ctx, fasthttp.MethodGet) {
			ctx.SetContentType("text/html; charset=utf-8")
			ctx.SetBody(indexPage)
		}
	case "/healthz":
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString("ok")
	case "/api/new_game":
		if h.allow(ctx, fasthttp.MethodPost) {
			h.newGame(ctx)
		}
	case "/api/move":
		if h.allow(ctx, fasthttp.MethodPost) {
			h.move(ctx)
		}
	case "/api/valid_moves":
		if h.allow(ctx, fasthttp.MethodPost) {
			h.validMoves(ctx)
		}
	case "/api/undo":
		if h.allow(ctx, fasthttp.MethodPost) {
			h.undo(ctx)
		}
	case "/api/game_state":
		if h.allow(ctx, fasthttp.MethodGet) {
			h.gameState(ctx)
		}
	case "/api/board.png":
		if h.allow(ctx, fasthttp.MethodGet) {
			h.boardImage(ctx)
		}
	case "/api/history":
		if h.allow(ctx, fasthttp.MethodGet) {
			h.history(ctx)
		}
	default:
		h.writeError(ctx, fasthttp.StatusNotFound, h.msgs.Text("errors.not_found", nil, "Not found"))
	}

	h.logger.Debug("http_request",
		zap.String("method", string(ctx.Method())),
		zap.String("path", path),
		zap.Int("status", ctx.Response.StatusCode()),
		zap.Duration("duration", time.Since(start)))
}

func (h *Handler) allow(ctx *fasthttp.RequestCtx, method string) bool {
	if string(ctx.Method()) == method {
		return true
	}
	ctx.Response.Header.Set(fasthttp.HeaderAllow, method)
	h.writeError(ctx, fasthttp.StatusMethodNotAllowed, "Method not allowed")
	return false
}

func (h *Handler) newGame(ctx *fasthttp.RequestCtx) {
	snap, err := h.games.NewGame(ctx, h.playerID(ctx))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	h.setCookie(ctx, GameCookie, snap.GameID, h.opts.GameCookieMaxAge)
	writeJSON(ctx, fasthttp.StatusOK, chessdto.NewGameResponse{
		Success:   true,
		GameID:    snap.GameID,
		GameState: toGameState(snap),
	})
}

func (h *Handler) move(ctx *fasthttp.RequestCtx) {
	var req chessdto.MoveRequest
	if !h.decode(ctx, &req) {
		return
	}
	res, err := h.games.SubmitMove(ctx, h.gameID(ctx),
		svc.Coord{Row: req.FromRow, Col: req.FromCol},
		svc.Coord{Row: req.ToRow, Col: req.ToCol})
	if err != nil {
		h.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, chessdto.MoveResponse{
		Success:   true,
		GameState: toGameState(res.Snapshot),
		AIMoved:   res.EngineMoved,
	})
}

func (h *Handler) validMoves(ctx *fasthttp.RequestCtx) {
	var req chessdto.ValidMovesRequest
	if !h.decode(ctx, &req) {
		return
	}
	dests, err := h.games.LegalDestinations(ctx, h.gameID(ctx), svc.Coord{Row: req.Row, Col: req.Col})
	if err != nil {
		h.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, chessdto.ValidMovesResponse{Success: true, ValidMoves: toValidMoves(dests)})
}

func (h *Handler) undo(ctx *fasthttp.RequestCtx) {
	snap, err := h.games.Undo(ctx, h.gameID(ctx))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, chessdto.StateResponse{Success: true, GameState: toGameState(snap)})
}

func (h *Handler) gameState(ctx *fasthttp.RequestCtx) {
	snap, err := h.games.Snapshot(ctx, h.gameID(ctx))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, chessdto.StateResponse{Success: true, GameState: toGameState(snap)})
}

func (h *Handler) boardImage(ctx *fasthttp.RequestCtx) {
	img, err := h.games.BoardPNG(ctx, h.gameID(ctx))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store")
	ctx.SetContentType("image/png")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(img)
}

func (h *Handler) history(ctx *fasthttp.RequestCtx) {
	limit, err := ctx.QueryArgs().GetUint("limit")
	if err != nil {
		limit = 0
	}
	games, err := h.games.History(ctx, h.playerID(ctx), limit)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, chessdto.HistoryResponse{Success: true, Games: toHistoryGames(games)})
}

func (h *Handler) decode(ctx *fasthttp.RequestCtx, dst any) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		msg := h.msgs.Text("errors.bad_request", map[string]string{"Reason": err.Error()}, "Malformed request")
		h.writeError(ctx, fasthttp.StatusBadRequest, msg)
		return false
	}
	return true
}

// fail maps domain errors to soft failures; anything unexpected is a 500.
func (h *Handler) fail(ctx *fasthttp.RequestCtx, err error) {
	key, fallback := messageFor(err)
	if key == "" {
		h.logger.Error("chess request failed",
			zap.String("path", string(ctx.Path())),
			zap.Error(err))
		h.writeError(ctx, fasthttp.StatusInternalServerError, h.msgs.Text("errors.internal", nil, "Internal server error"))
		return
	}
	h.writeError(ctx, fasthttp.StatusOK, h.msgs.Text(key, nil, fallback))
}

func messageFor(err error) (string, string) {
	switch {
	case errors.Is(err, svc.ErrSessionNotFound):
		return "errors.no_active_game", "No active game"
	case errors.Is(err, svc.ErrInvalidMove):
		return "errors.invalid_move", "Invalid move"
	case errors.Is(err, svc.ErrUndoNotAvailable):
		return "errors.cannot_undo", "Cannot undo"
	case errors.Is(err, svc.ErrEngineTimeout):
		return "errors.engine_timeout", "Chess engine timed out"
	case errors.Is(err, svc.ErrEngineUnavailable):
		return "errors.engine_unavailable", "Chess engine unavailable"
	case errors.Is(err, svc.ErrConcurrentUpdate):
		return "errors.concurrent_update", "Game was updated by another request, please retry"
	default:
		return "", ""
	}
}

func (h *Handler) writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, chessdto.ErrorResponse{Success: false, Error: msg})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.Error(`{"success":false,"error":"encode response"}`, fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType(contentTypeJSON)
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func (h *Handler) gameID(ctx *fasthttp.RequestCtx) string {
	return string(ctx.Request.Header.Cookie(GameCookie))
}

// playerID returns the browser token, issuing one on first contact.
func (h *Handler) playerID(ctx *fasthttp.RequestCtx) string {
	if id := string(ctx.Request.Header.Cookie(PlayerCookie)); id != "" {
		return id
	}
	id := uuid.NewString()
	h.setCookie(ctx, PlayerCookie, id, playerCookieMaxAge)
	return id
}

func (h *Handler) setCookie(ctx *fasthttp.RequestCtx, name, value string, maxAge int) {
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(name)
	c.SetValue(value)
	c.SetPath("/")
	c.SetHTTPOnly(true)
	c.SetSecure(h.opts.SecureCookies)
	c.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	if maxAge > 0 {
		c.SetMaxAge(maxAge)
	}
	ctx.Response.Header.SetCookie(c)
}
