// Package maintenance runs one-shot reconcile sweeps against battle storage.
// It exists for deployments that schedule sweeps externally instead of
// relying on the server's in-process loop.
package maintenance

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/agorahq/arena/internal/platform/config"
	"github.com/agorahq/arena/internal/services/battle/domain"
	battlesqlite "github.com/agorahq/arena/internal/services/battle/storage/sqlite"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath       string        `env:"ARENA_DB_PATH" envDefault:"data/battle.db"`
	ChallengeTTL time.Duration `env:"ARENA_CHALLENGE_TTL" envDefault:"24h"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The battle SQLite database path")
	fs.DurationVar(&cfg.ChallengeTTL, "challenge-ttl", cfg.ChallengeTTL, "How long unanswered challenges stay open")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes one reconcile pass and prints the report as JSON.
func Run(ctx context.Context, cfg Config) error {
	store, err := battlesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open battle sqlite store: %w", err)
	}
	defer store.Close()

	service := domain.NewService(domain.ServiceConfig{
		Store:        store,
		ChallengeTTL: cfg.ChallengeTTL,
	})
	report, err := service.Reconcile(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
