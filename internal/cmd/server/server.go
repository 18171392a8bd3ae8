// Package server parses server command flags and launches the battle runtime.
package server

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/agorahq/arena/internal/platform/config"
	"github.com/agorahq/arena/internal/platform/otel"
	"github.com/agorahq/arena/internal/services/battle/app"
)

// Config holds server command configuration.
type Config struct {
	Addr          string        `env:"ARENA_HTTP_ADDR" envDefault:":8080"`
	DBPath        string        `env:"ARENA_DB_PATH" envDefault:"data/battle.db"`
	CronKey       string        `env:"ARENA_CRON_KEY"`
	SweepInterval time.Duration `env:"ARENA_SWEEP_INTERVAL" envDefault:"60s"`
	ChallengeTTL  time.Duration `env:"ARENA_CHALLENGE_TTL" envDefault:"24h"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The battle SQLite database path")
	fs.StringVar(&cfg.CronKey, "cron-key", cfg.CronKey, "Shared secret for the reconcile endpoint")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Reconcile sweep interval")
	fs.DurationVar(&cfg.ChallengeTTL, "challenge-ttl", cfg.ChallengeTTL, "How long unanswered challenges stay open")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the battle server runtime with tracing wired in.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "arena-battle")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
		cancel()
	}()

	return app.Run(ctx, app.RuntimeConfig{
		Addr:          cfg.Addr,
		DBPath:        cfg.DBPath,
		CronKey:       cfg.CronKey,
		SweepInterval: cfg.SweepInterval,
		ChallengeTTL:  cfg.ChallengeTTL,
	})
}
