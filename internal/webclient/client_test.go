package webclient

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/chess-web/pkg/chessdto"
)

func serveInMemory(t *testing.T, h fasthttp.RequestHandler) *fasthttp.Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
}

func TestRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	hc := serveInMemory(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) < 3 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"success":true,"game_state":{"current_player":"white"}}`)
	})

	c := New("http://chess.test", WithHTTPClient(hc), WithRetry(3))
	resp, err := c.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "white", resp.GameState.CurrentPlayer)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMoveIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	hc := serveInMemory(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	})

	c := New("http://chess.test", WithHTTPClient(hc), WithRetry(3))
	_, err := c.Move(context.Background(), chessdto.MoveRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCookiesAreReplayed(t *testing.T) {
	hc := serveInMemory(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == "/api/new_game" {
			ck := fasthttp.AcquireCookie()
			ck.SetKey("chess_game")
			ck.SetValue("abc")
			ck.SetHTTPOnly(true)
			ctx.Response.Header.SetCookie(ck)
			fasthttp.ReleaseCookie(ck)
			ctx.SetBodyString(`{"success":true,"game_id":"abc"}`)
			return
		}
		if string(ctx.Request.Header.Cookie("chess_game")) != "abc" {
			ctx.SetBodyString(`{"success":false,"error":"No active game"}`)
			return
		}
		ctx.SetBodyString(`{"success":true,"game_state":{"current_player":"black"}}`)
	})

	c := New("http://chess.test", WithHTTPClient(hc))
	ctx := context.Background()
	_, err := c.NewGame(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", c.Cookie("chess_game"))

	resp, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "black", resp.GameState.CurrentPlayer)
}

func TestSoftFailureBecomesDomainError(t *testing.T) {
	hc := serveInMemory(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"success":false,"error":"Cannot undo"}`)
	})

	c := New("http://chess.test", WithHTTPClient(hc))
	_, err := c.Undo(context.Background())
	var de chessdto.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Cannot undo", de.Message)
	assert.Equal(t, fasthttp.StatusOK, de.Status)
}

func TestBackoffDuration(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, backoffDuration(0))
	assert.Equal(t, 200*time.Millisecond, backoffDuration(2))
	assert.Equal(t, 3200*time.Millisecond, backoffDuration(10))
}
