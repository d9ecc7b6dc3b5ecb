package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/instawin/merchprize/internal/api/http"
	appJournal "github.com/instawin/merchprize/internal/application/journal"
	appOutcome "github.com/instawin/merchprize/internal/application/outcome"
	"github.com/instawin/merchprize/internal/application/play"
	"github.com/instawin/merchprize/internal/application/token"
	"github.com/instawin/merchprize/internal/config"
	"github.com/instawin/merchprize/internal/domain/gameparams"
	"github.com/instawin/merchprize/internal/domain/journal"
	"github.com/instawin/merchprize/internal/domain/operator"
	"github.com/instawin/merchprize/internal/domain/outcome"
	"github.com/instawin/merchprize/internal/domain/replay"
	"github.com/instawin/merchprize/internal/infrastructure/keystore"
	"github.com/instawin/merchprize/internal/infrastructure/memory"
	"github.com/instawin/merchprize/internal/infrastructure/ode"
	"github.com/instawin/merchprize/internal/infrastructure/postgres"
	"github.com/instawin/merchprize/internal/infrastructure/signer"
	"github.com/instawin/merchprize/internal/infrastructure/sqlite"
	"github.com/instawin/merchprize/internal/infrastructure/sse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	zerolog.SetGlobalLevel(cfg.Level)
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx := context.Background()

	games, err := gameparams.LoadDir(cfg.GameParamsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load game params")
	}
	logger.Info().Strs("games", games.IDs()).Msg("game params loaded")

	keys, err := loadKeys(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load signing keys")
	}

	var tokenSigner token.Signer
	switch cfg.TokenFormat {
	case config.TokenFormatJWT:
		jwtOpts := []signer.JWTOption{signer.WithIssuer(cfg.TokenIssuer)}
		if cfg.TokenTTL > 0 {
			jwtOpts = append(jwtOpts, signer.WithExpiry(cfg.TokenTTL))
		}
		tokenSigner = signer.NewJWTSigner(keys, jwtOpts...)
	default:
		tokenSigner = signer.NewHMACSigner(keys)
	}
	codec := token.NewCodec(tokenSigner, token.WithTTL(cfg.TokenTTL))

	var engine outcome.Engine
	switch cfg.ODEMode {
	case config.ODEModeHTTP:
		engine, err = ode.NewHTTPEngine(cfg.ODEURL)
	default:
		engine, err = ode.NewLocalEngine(games)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create outcome engine")
	}
	resolver := appOutcome.NewResolver(engine, cfg.ODETimeout, logger)

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.JournalDriver).Msg("failed to open journal store")
	}
	defer store.close()

	journalSvc := appJournal.NewService(store.journal, logger, cfg.JournalKey)
	sseHub := sse.NewHub(logger)

	playOpts := []play.Option{
		play.WithRecorder(journalSvc),
		play.WithNotifier(sseHub),
	}
	if cfg.TokenSingleUse {
		playOpts = append(playOpts, play.WithReplayGuard(store.guard))
	}
	playSvc := play.NewService(codec, resolver, logger, playOpts...)

	if cfg.OperatorKeyHash != "" {
		if err := operator.CheckHash(cfg.OperatorKeyHash); err != nil {
			logger.Fatal().Err(err).Msg("invalid OPERATOR_KEY_HASH")
		}
	} else {
		logger.Warn().Msg("OPERATOR_KEY_HASH not set: operator endpoints are disabled")
	}

	apiServer := httpapi.NewServer(playSvc, journalSvc, games, sseHub, cfg.OperatorKeyHash, logger)

	// no WriteTimeout: /v1/events streams until the client leaves
	httpServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     apiServer.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.ServerAddr).
			Str("token_format", cfg.TokenFormat).
			Str("ode_mode", cfg.ODEMode).
			Str("journal", cfg.JournalDriver).
			Bool("single_use", cfg.TokenSingleUse).
			Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sseHub.Stop()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
	logger.Info().Msg("http server stopped")
}

func loadKeys(cfg *config.Config, logger zerolog.Logger) (*keystore.StaticKeyStore, error) {
	if cfg.SigningKeys == "" {
		logger.Warn().Msg("SIGNING_KEYS not set: using an ephemeral key, tokens will not survive a restart")
		return keystore.NewEphemeral()
	}
	return keystore.FromSpec(cfg.SigningKeys, cfg.SigningDefaultKeyID)
}

type journalStore struct {
	journal journal.Repository
	guard   replay.Guard
	close   func()
}

func openStore(ctx context.Context, cfg *config.Config) (*journalStore, error) {
	switch cfg.JournalDriver {
	case config.JournalPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
		return &journalStore{
			journal: postgres.NewJournalRepository(pool),
			guard:   postgres.NewReplayRepository(pool),
			close:   pool.Close,
		}, nil
	case config.JournalSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &journalStore{
			journal: db.Journal(),
			guard:   db.ReplayGuard(),
			close:   func() { _ = db.Close() },
		}, nil
	default:
		return &journalStore{
			journal: memory.NewJournalRepository(),
			guard:   memory.NewReplayGuard(),
			close:   func() {},
		}, nil
	}
}
