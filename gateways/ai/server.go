package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	config "github.com/xilidan/signposting/config/ai"
	"github.com/xilidan/signposting/gateways/ai/handler"
	"github.com/xilidan/signposting/gateways/ai/middleware"
	"github.com/xilidan/signposting/services/ai/usecase"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	handler *handler.Handler
}

func New(cfg *config.Config, usc usecase.Usecase, ready handler.ReadinessChecker, log *slog.Logger) *Server {
	log.Debug("server config",
		slog.Int("port", cfg.Port),
		slog.Duration("request_timeout", cfg.RequestTimeout),
		slog.Bool("jwt_auth", cfg.Auth.JWTSecret != ""),
		slog.Bool("api_key_auth", cfg.Auth.APIKeyHash != ""),
	)
	return &Server{
		cfg:     cfg,
		log:     log,
		handler: handler.New(usc, ready, log),
	}
}

func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.APIKeyHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := s.handler
	router.Get("/", h.RootHandler)
	router.Route("/health", func(healthRouter chi.Router) {
		healthRouter.Get("/", h.HealthHandler)
		healthRouter.Get("/ready", h.ReadyHandler)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(&s.cfg.Auth, s.log))
		if s.cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(s.cfg.RequestTimeout))
		}

		r.Route("/tasks", func(tasksRouter chi.Router) {
			tasksRouter.Post("/transcription", h.TranscriptionHandler)
		})
		r.Route("/llm", func(llmRouter chi.Router) {
			llmRouter.Post("/signposting-{org:(golding|alix)}", h.SignpostingHandler)
			llmRouter.Post("/enham-qa", h.QuestionHandler)
		})
	})

	return router
}

// Start serves HTTP until ctx is canceled or a shutdown signal arrives.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info("ai gateway started", slog.String("address", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		s.log.Info("start shutdown", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.log.Info("closing server due to context cancellation")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("graceful shutdown failed", slog.String("error", err.Error()))
		srv.Close()
		return fmt.Errorf("failed to gracefully shutdown server: %w", err)
	}

	s.log.Info("server stopped cleanly")
	return nil
}
