package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"

	"github.com/decomontenegro/fusetech-sub003/internal/achievement"
	"github.com/decomontenegro/fusetech-sub003/internal/auth"
	"github.com/decomontenegro/fusetech-sub003/internal/config"
	"github.com/decomontenegro/fusetech-sub003/internal/envconfig"
	"github.com/decomontenegro/fusetech-sub003/internal/events"
	"github.com/decomontenegro/fusetech-sub003/internal/httpapi"
	"github.com/decomontenegro/fusetech-sub003/internal/logging"
	"github.com/decomontenegro/fusetech-sub003/internal/server"
)

const serviceName = "achievement-service"

func main() {
	ctx := context.Background()

	envconfig.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLogger(serviceName)

	catalogRepo, progressRepo, cleanup, err := newRepositories(ctx, cfg)
	if err != nil {
		panic(fmt.Errorf("repository init error: %w", err))
	}
	defer cleanup()

	publisher, pubCleanup, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		panic(fmt.Errorf("publisher init error: %w", err))
	}
	defer pubCleanup()

	clock := achievement.NewSystemClock()
	ids := achievement.NewUUIDGenerator()

	tracker, err := achievement.NewTracker(catalogRepo, progressRepo, publisher, clock, logger)
	if err != nil {
		panic(fmt.Errorf("tracker init error: %w", err))
	}
	ledger, err := achievement.NewLedger(catalogRepo, progressRepo, publisher, clock, ids, logger)
	if err != nil {
		panic(fmt.Errorf("ledger init error: %w", err))
	}
	catalog, err := achievement.NewCatalog(catalogRepo, progressRepo, clock)
	if err != nil {
		panic(fmt.Errorf("catalog init error: %w", err))
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Mode:     cfg.Auth.Mode,
		JWKSURL:  cfg.Auth.JWKSURL,
		Audience: cfg.Auth.Audience,
		Issuer:   cfg.Auth.Issuer,
	})
	if err != nil {
		panic(fmt.Errorf("auth verifier error: %w", err))
	}

	router := server.NewRouter(serviceName, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier))

			httpapi.RegisterRoutes(r, tracker, ledger, catalog, logger)
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := server.Run(ctx, srv, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func newRepositories(ctx context.Context, cfg config.Config) (achievement.CatalogRepository, achievement.ProgressRepository, func(), error) {
	switch cfg.DataStore {
	case config.DataStoreFirestore:
		if cfg.Firestore.EmulatorHost != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost); err != nil {
				return nil, nil, nil, fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err)
			}
		}

		client, err := firestore.NewClient(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("firestore client: %w", err)
		}

		cleanup := func() {
			_ = client.Close()
		}
		return achievement.NewFirestoreCatalogRepository(client), achievement.NewFirestoreProgressRepository(client), cleanup, nil
	default:
		catalogRepo, err := achievement.NewMemoryCatalogRepository(achievement.DefaultCatalog()...)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("seed catalog: %w", err)
		}
		return catalogRepo, achievement.NewMemoryProgressRepository(), func() {}, nil
	}
}

func newPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger) (events.Publisher, func(), error) {
	switch cfg.Publisher {
	case config.PublisherPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub client: %w", err)
		}
		cleanup := func() {
			_ = client.Close()
		}
		return events.NewPubSubPublisher(client), cleanup, nil
	default:
		return events.NewLogPublisher(logger), func() {}, nil
	}
}
