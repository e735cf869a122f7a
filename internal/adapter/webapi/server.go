package webapi

import (
	"context"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const maxRequestBody = 64 << 10

type Server struct {
	srv    *fasthttp.Server
	logger *zap.Logger
}

func NewServer(h *Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &fasthttp.Server{
			Handler:            h.Handle,
			Name:               "chess-web",
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       30 * time.Second,
			IdleTimeout:        60 * time.Second,
			MaxRequestBodySize: maxRequestBody,
			Logger:             printfLogger{logger.Sugar()},
		},
		logger: logger,
	}
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("http_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

type printfLogger struct {
	s *zap.SugaredLogger
}

func (l printfLogger) Printf(format string, args ...any) {
	l.s.Warnf(format, args...)
}
