package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toohak-backend/internal/config"
	"toohak-backend/internal/handlers"
	"toohak-backend/internal/middleware"
	"toohak-backend/internal/quiz"
	"toohak-backend/internal/store"

	"github.com/coder/websocket"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig("")
	if err != nil {
		return err
	}

	if cfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	hub := handlers.NewHub()
	sessions := quiz.NewSessions(quiz.SessionOptions{
		Rooms:            st,
		Quizzes:          st,
		Broadcaster:      hub,
		RevealTimeout:    cfg.Room.RevealTimeout,
		BroadcastTimeout: cfg.Room.BroadcastTimeout,
	})

	acceptOpts := websocket.AcceptOptions{
		OriginPatterns: cfg.AllowedOrigins,
	}
	if cfg.Debug {
		acceptOpts.InsecureSkipVerify = true // Accepting all origins
	}

	mws := middleware.Defaults(cfg)
	mux := http.NewServeMux()

	mux.Handle("GET /ws", middleware.Chain(handlers.NewGatewayHandler(cfg, st, hub, sessions, acceptOpts), middleware.RequestIDMiddleware))
	mux.Handle("POST /rooms", middleware.Chain(handlers.CreateRoomHandler(st, sessions), mws...))
	mux.Handle("GET /rooms/{id}", middleware.Chain(handlers.GetRoomHandler(st, sessions), mws...))
	mux.Handle("POST /quizzes", middleware.Chain(handlers.CreateQuizHandler(st), mws...))
	mux.Handle("GET /quizzes/{id}", middleware.Chain(handlers.GetQuizHandler(st), mws...))
	mux.Handle("PUT /quizzes/{id}/questions", middleware.Chain(handlers.UpdateQuizQuestionsHandler(st), mws...))
	mux.Handle("POST /questions", middleware.Chain(handlers.CreateQuestionHandler(st), mws...))
	mux.Handle("GET /questions/{id}", middleware.Chain(handlers.GetQuestionHandler(st), mws...))
	mux.Handle("PATCH /questions/{id}", middleware.Chain(handlers.UpdateQuestionHandler(st), mws...))
	mux.Handle("GET /health", middleware.Chain(handlers.HealthHandler(sessions), mws...))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown does not wait for hijacked websocket connections.
	return srv.Shutdown(shutdownCtx)
}
