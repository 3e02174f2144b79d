package cmd

import (
	"context"
	"fmt"

	"github.com/KP-101219/Quickroll-V2/internal/attendance"
	"github.com/KP-101219/Quickroll-V2/internal/config"
	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/KP-101219/Quickroll-V2/internal/database/gormstore"
	"github.com/KP-101219/Quickroll-V2/internal/database/postgres"
	"github.com/KP-101219/Quickroll-V2/internal/embedder"
	"github.com/KP-101219/Quickroll-V2/internal/recognition"
	"github.com/KP-101219/Quickroll-V2/internal/roster"
)

// engine holds the wired components shared by serve and the CLI commands.
type engine struct {
	cfg        *config.Config
	store      database.Store
	index      *recognition.Store
	controller *recognition.Controller
	recognizer *recognition.Recognizer
	roster     *roster.Service
	attendance *attendance.Service
}

// loadConfig reads and validates the environment configuration.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore registers every backend and opens the one DATABASE_URL selects.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	postgres.Register()
	gormstore.Register()

	name, _, err := database.ParseURL(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Connecting to %s database...\n", name)
	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// newEngine wires the recognition pipeline on top of an open store.
func newEngine(cfg *config.Config, store database.Store) (*engine, error) {
	metric, err := recognition.NewMetric(cfg.Recognition.Metric)
	if err != nil {
		return nil, err
	}
	classifier, err := recognition.NewClassifier(recognition.Thresholds{
		Recognized: cfg.Recognition.RecognizedThreshold,
		Maybe:      cfg.Recognition.MaybeThreshold,
	})
	if err != nil {
		return nil, err
	}

	client := embedder.NewClient(cfg.Embedder.URL, cfg.Embedder.Timeout)
	index := recognition.NewStore(cfg.Embedder.Dim)
	controller := recognition.NewController(store, index, cfg.Database.Timeout)
	recognizer := recognition.NewRecognizer(client, recognition.NewMatcher(index, metric), classifier)

	return &engine{
		cfg:        cfg,
		store:      store,
		index:      index,
		controller: controller,
		recognizer: recognizer,
		roster:     roster.NewService(store, client, &cfg.Recognition, cfg.Embedder.Dim),
		attendance: attendance.NewService(store, recognizer, &cfg.Attendance),
	}, nil
}

// openEngine loads config, opens the store and wires the engine. The caller closes e.store.
func openEngine(ctx context.Context) (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e, err := newEngine(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return e, nil
}
