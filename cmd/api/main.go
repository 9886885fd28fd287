package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/zooconnect/ambassador-chat/internal/auth"
	"github.com/zooconnect/ambassador-chat/internal/config"
	"github.com/zooconnect/ambassador-chat/internal/handler"
	"github.com/zooconnect/ambassador-chat/internal/model/persona"
	"github.com/zooconnect/ambassador-chat/internal/service/completion"
	historysvc "github.com/zooconnect/ambassador-chat/internal/service/history"
	sessionsvc "github.com/zooconnect/ambassador-chat/internal/service/session"
	turnsvc "github.com/zooconnect/ambassador-chat/internal/service/turn"
	"github.com/zooconnect/ambassador-chat/internal/store/history"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg("no .env file, using system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration failed")
	}
	logger = logger.Level(parseLevel(cfg.LogLevel))

	store, cleanup, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("history store failed")
	}
	defer cleanup()

	personaStore := persona.NewMemoryStore(persona.Seed())
	sessions := sessionsvc.New(store, cfg.ContextWindow, cfg.SessionIdleTimeout)

	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("completion backend failed")
	}

	processor := turnsvc.NewProcessor(sessions, store, personaStore, backend, cfg.TurnTimeout, logger)
	queries := historysvc.NewService(store, logger)

	sweeper := historysvc.NewSweeper(store, cfg.RetentionHorizon(), cfg.SessionIdleTimeout, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)

	validator := auth.NewJWTValidator(cfg.JWTSecret)
	router := handler.NewRouter(validator, personaStore, sessions, processor, queries, logger)

	if err := serve(ctx, cfg.Addr, router, logger); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func newLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}

func newStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (history.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("no DATABASE_URL configured, history is held in memory only")
		return history.NewMemoryStore(), func() {}, nil
	}

	if err := history.RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, nil, err
	}

	store, err := history.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("postgres history store ready")
	return store, store.Close, nil
}

func newBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (completion.Backend, error) {
	if !cfg.Ark.Enabled() {
		return nil, errors.New("ark credentials missing: set ARK_API_KEY and ARK_MODEL")
	}

	chatModel, err := cfg.Ark.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}

	backend, err := completion.NewArkBackend(ctx, chatModel)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("model", cfg.Ark.Model).Msg("completion backend ready")
	return backend, nil
}

func serve(ctx context.Context, addr string, router http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info().Str("addr", addr).Msg("ambassador chat listening")

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
