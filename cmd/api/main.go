package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/affirmation-studio/backend/internal/config"
	"github.com/zhouzirui/affirmation-studio/backend/internal/handler"
	studioHandler "github.com/zhouzirui/affirmation-studio/backend/internal/handler/studio"
	"github.com/zhouzirui/affirmation-studio/backend/internal/logging"
	"github.com/zhouzirui/affirmation-studio/backend/internal/service/ai"
	"github.com/zhouzirui/affirmation-studio/backend/internal/service/session"
	"github.com/zhouzirui/affirmation-studio/backend/internal/service/speech"
	"github.com/zhouzirui/affirmation-studio/backend/internal/service/studio"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", "err", err)
	}

	logger := logging.Setup(cfg.Log)
	if envErr != nil {
		logger.Warn("no .env file loaded, using process environment only", "err", envErr)
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	aiService, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		logger.Fatal("failed to initialize AI service", "err", err)
	}
	logger.Info("AI service initialized", "model", cfg.AI.Model, "count", aiService.DefaultCount())

	speechService := speech.NewService(cfg.Speech.Model())
	if err := speechService.LoadVoices(ctx); err != nil {
		logger.Warn("continuing without voices, synthesis stays disabled")
	}

	broker := studio.NewBroker()
	controller := studio.New(session.NewService(), aiService, speechService, speechService.Catalog(), broker)
	conns := studioHandler.NewConnectionManager()

	router := handler.NewRouter(controller, speechService.Catalog(), conns)

	startServer(ctx, cfg.Server, router, conns)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, conns *studioHandler.ConnectionManager) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv.RegisterOnShutdown(conns.CloseAll)

	log.Info("Affirmation Studio backend listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatal("server error", "err", err)
	}
	log.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
