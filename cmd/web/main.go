package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/config"
	"github.com/AdamBeresnev/dbc-bracket/internal/db"
	"github.com/AdamBeresnev/dbc-bracket/internal/feed"
	"github.com/AdamBeresnev/dbc-bracket/internal/live"
	"github.com/AdamBeresnev/dbc-bracket/internal/logging"
	"github.com/AdamBeresnev/dbc-bracket/internal/middleware"
	"github.com/AdamBeresnev/dbc-bracket/internal/operator"
	"github.com/AdamBeresnev/dbc-bracket/internal/publish"
	"github.com/AdamBeresnev/dbc-bracket/internal/service"
	"github.com/AdamBeresnev/dbc-bracket/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/pkg/errors"
)

const shutdownTimeout = 15 * time.Second

var logger = logging.GetZeroLogger("main", nil)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.SetLevel(cfg.LogLevel)

	database, err := db.InitDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := live.NewHub()
	go hub.Run(ctx)

	tournamentStore := store.NewTournamentStore(database)
	operatorStore := store.NewOperatorStore(database)

	tournament := service.NewTournamentService(database, tournamentStore, hub)
	if err := tournament.Initialize(ctx); err != nil && !errors.Is(err, bracket.ErrAlreadyInitialized) {
		logger.Fatal().Err(err).Msg("Failed to initialize tournament")
	}

	history, closeFeed, err := newFeed(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up history feed")
	}
	defer closeFeed()

	registration := service.NewRegistrationService(database, tournamentStore, hub)
	bracketService := service.NewBracketService(database, tournamentStore, hub)

	var uploader *publish.Uploader
	if cfg.Publish.Enabled() {
		uploader, err = publish.NewUploader(ctx, cfg.Publish)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to set up bracket publishing")
		}
	}

	middleware.InitAuth(cfg.Auth)

	sessionManager := scs.New()
	sessionManager.Lifetime = 24 * time.Hour
	if cfg.DBDriver == db.DriverSQLite {
		sessionManager.Store = sqlite3store.New(database.DB)
	} else {
		sessionManager.Store = memstore.New()
	}

	router := newRouter(&app{
		sessionManager: sessionManager,
		operatorStore:  operatorStore,
		allowlist:      operator.NewAllowlist(cfg.Operator.IDs),
		operatorToken:  cfg.Operator.Token,
		corsOrigins:    cfg.CORSOrigins,
		tournament:     tournament,
		registration:   registration,
		bracket:        bracketService,
		matches:        service.NewMatchService(database, tournamentStore, bracketService, history),
		controller:     service.NewRoundController(database, tournamentStore, tournament, registration, bracketService, hub),
		snapshots:      service.NewSnapshotService(database, tournamentStore),
		operators:      service.NewOperatorService(database, operatorStore),
		hub:            hub,
		uploader:       uploader,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("address", server.Addr).Msg("Server starting.")
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server error")
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
			server.Close()
			os.Exit(1)
		}
	}
	logger.Info().Msg("Server stopped.")
}

// newFeed builds the battle log client behind a Redis cache when one is
// configured, or an in-process LRU otherwise.
func newFeed(cfg *config.Config) (*feed.CachedFeed, func(), error) {
	client := feed.NewClient(feed.ClientConfig{
		BaseURL:       cfg.Feed.BaseURL,
		Token:         cfg.Feed.Token,
		Timeout:       cfg.Feed.Timeout,
		Window:        cfg.Feed.Window,
		RatePerSecond: cfg.Feed.RatePerSecond,
		Burst:         cfg.Feed.Burst,
	})

	if cfg.Redis.Enabled() {
		cache := feed.NewRedisCache(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Feed.CacheTTL)
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("Using Redis history cache.")
		return feed.NewCachedFeed(client, cache), func() { cache.Close() }, nil
	}

	cache, err := feed.NewLRUCache(cfg.Feed.CacheSize, cfg.Feed.CacheTTL)
	if err != nil {
		return nil, nil, err
	}
	return feed.NewCachedFeed(client, cache), func() {}, nil
}
