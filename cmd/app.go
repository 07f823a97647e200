package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/roll-call/internal/attendance"
	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/database/postgres"
	"github.com/kozaktomas/roll-call/internal/embedding"
	"github.com/kozaktomas/roll-call/internal/facematch"
	"github.com/kozaktomas/roll-call/internal/imagefetch"
	"github.com/kozaktomas/roll-call/internal/storage"
	"github.com/kozaktomas/roll-call/internal/verify"
)

// app holds everything a command needs to verify attendance.
type app struct {
	pool       *postgres.Pool
	roster     *postgres.RosterRepository
	attendance *postgres.AttendanceRepository
	service    *verify.Service
}

func (a *app) Close() {
	if err := a.pool.Close(); err != nil {
		fmt.Printf("Warning: closing database: %v\n", err)
	}
}

// loadConfig reads and validates configuration. A non-nil threshold replaces MATCH_THRESHOLD.
func loadConfig(threshold *float64) (*config.Config, error) {
	cfg := config.Load()
	if threshold != nil {
		cfg.Match.Threshold = *threshold
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openDatabase connects to PostgreSQL and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*postgres.Pool, error) {
	fmt.Println("Connecting to PostgreSQL...")
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return pool, nil
}

// newApp wires repositories, the image signer, the fetcher and the embedding
// provider into a verification service.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return nil, err
	}
	policy, err := facematch.ParsePolicy(cfg.Match.Policy)
	if err != nil {
		return nil, err
	}

	signer, err := storage.NewSigner(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("creating image signer: %w", err)
	}

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rosterRepo := postgres.NewRosterRepository(pool)
	attendanceRepo := postgres.NewAttendanceRepository(pool)

	fetcher := imagefetch.New(imagefetch.Options{
		Timeout:  cfg.Fetch.Timeout,
		Retries:  cfg.Fetch.Retries,
		MaxBytes: cfg.Fetch.MaxBytes,
	})
	provider := embedding.NewLazyClient(embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.HealthPath, cfg.Embedding.Timeout))

	service := verify.NewService(
		rosterRepo,
		fetcher,
		signer,
		provider,
		attendance.NewReconciler(attendanceRepo, loc),
		verify.Options{
			Match:        facematch.MatchOptions{Threshold: cfg.Match.Threshold, Policy: policy},
			SignedURLTTL: cfg.Storage.SignedURLTTL,
		},
	)

	return &app{
		pool:       pool,
		roster:     rosterRepo,
		attendance: attendanceRepo,
		service:    service,
	}, nil
}

// outputJSON prints data as indented JSON.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
