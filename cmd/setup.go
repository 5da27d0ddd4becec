package cmd

import (
	"fmt"

	"github.com/kozaktomas/face-sentry/internal/config"
	"github.com/kozaktomas/face-sentry/internal/enccache"
	"github.com/kozaktomas/face-sentry/internal/facedet"
	"github.com/kozaktomas/face-sentry/internal/recognition"
	"github.com/kozaktomas/face-sentry/internal/store"
	"github.com/kozaktomas/face-sentry/internal/store/postgres"
)

// components is the shared wiring most commands need.
type components struct {
	cfg      *config.Config
	detector *facedet.Client
	engine   *recognition.Engine
	store    store.Store // nil when no database is configured
}

// setup loads configuration and builds the detector client, encoding cache,
// optional store and the recognition engine. The engine is not loaded yet;
// commands decide whether to pay that cost.
func setup() (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	detector := facedet.NewClient(cfg.Detector.URL, cfg.Recognition.Model, cfg.Detector.Timeout)

	cache, err := enccache.Open(cfg.Paths.EncodingCache)
	if err != nil {
		return nil, fmt.Errorf("opening encoding cache: %w", err)
	}

	var st store.Store
	if cfg.Database.URL != "" {
		pg, err := postgres.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		st = pg
		fmt.Println("Using PostgreSQL event store")
	}

	engine := recognition.New(cfg.Paths.KnownFacesDir, cfg.Recognition.Threshold, detector, cache, st)

	return &components{
		cfg:      cfg,
		detector: detector,
		engine:   engine,
		store:    st,
	}, nil
}

func (c *components) close() {
	if c.store != nil {
		c.store.Close()
	}
}
