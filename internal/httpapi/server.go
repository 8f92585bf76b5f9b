package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"breakbot/internal/journal"
	"breakbot/internal/ledger"
	"breakbot/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"

	defaultTradesLimit = 20
	maxTradesLimit     = 500
	shutdownTimeout    = 5 * time.Second
)

type Engine interface {
	SetTrading(enabled bool) bool
	TradingEnabled() bool
	Status() ledger.Status
}

type Journal interface {
	LastN(n int) ([]journal.Record, error)
}

type Options struct {
	Addr         string
	ControlToken string
	Engine       Engine
	Journal      Journal
	Metrics      http.Handler
	// Webhook и WebhookPath задаются вместе; путь без ведущего слэша.
	Webhook     gin.HandlerFunc
	WebhookPath string
	Log         *logger.Logger
}

type Server struct {
	opts   Options
	router *gin.Engine
	log    *logger.Logger
}

func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	s := &Server{opts: opts, log: opts.Log}
	s.router = s.setupRoutes()
	return s
}

func (s *Server) logEntry() *logrus.Entry {
	return s.log.WithComponent("http")
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(s.log))
	router.Use(gin.Recovery())

	router.GET("/", s.root)
	router.GET("/health", s.health)

	api := router.Group("/api")
	api.GET("/status", s.status)
	api.GET("/trades", s.trades)
	api.POST("/pause", tokenMiddleware(s.opts.ControlToken), s.pause)
	api.POST("/resume", tokenMiddleware(s.opts.ControlToken), s.resume)

	if s.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}
	if s.opts.Webhook != nil && s.opts.WebhookPath != "" {
		router.POST("/telegram/"+strings.TrimPrefix(s.opts.WebhookPath, "/"), s.opts.Webhook)
	}
	return router
}

// Run слушает Addr до отмены ctx, затем гасит сервер.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logEntry().WithField("addr", s.opts.Addr).Info("HTTP сервер запущен.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logEntry().WithError(err).Warn("Не удалось корректно остановить HTTP сервер.")
		return err
	}
	s.logEntry().Info("HTTP сервер остановлен.")
	return nil
}
