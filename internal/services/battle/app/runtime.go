// Package app assembles the battle service runtime: storage, the broadcast
// hub, token verification, the HTTP surface, and the reconcile sweep loop.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agorahq/arena/internal/platform/authtoken"
	"github.com/agorahq/arena/internal/services/battle/api/httpapi"
	"github.com/agorahq/arena/internal/services/battle/broadcast"
	"github.com/agorahq/arena/internal/services/battle/domain"
	battlesqlite "github.com/agorahq/arena/internal/services/battle/storage/sqlite"
)

// RuntimeConfig controls battle service startup and loop behavior.
type RuntimeConfig struct {
	Addr          string
	DBPath        string
	CronKey       string
	SweepInterval time.Duration
	ChallengeTTL  time.Duration
}

const (
	defaultAddr          = ":8080"
	defaultDBPath        = "data/battle.db"
	defaultSweepInterval = time.Minute
)

// Run starts the battle runtime and serves until the context ends.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = defaultAddr
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create battle storage dir: %w", err)
		}
	}

	store, err := battlesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open battle sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close battle sqlite store: %v", closeErr)
		}
	}()

	authConfig, err := authtoken.LoadConfigFromEnv(nil)
	if err != nil {
		return fmt.Errorf("load auth token config: %w", err)
	}
	verifier, err := authtoken.NewVerifier(authConfig)
	if err != nil {
		return fmt.Errorf("build auth token verifier: %w", err)
	}

	hub := broadcast.NewHub()
	service := domain.NewService(domain.ServiceConfig{
		Store:        store,
		Broadcaster:  hub,
		ChallengeTTL: cfg.ChallengeTTL,
	})

	handler := httpapi.NewHandler(httpapi.HandlerConfig{
		Service:  service,
		Hub:      hub,
		Verifier: verifier,
		CronKey:  cfg.CronKey,
	})
	server, err := httpapi.NewServer(cfg.Addr, handler)
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}

	go runSweepLoop(ctx, service, cfg.SweepInterval)

	return server.ListenAndServe(ctx)
}

// runSweepLoop periodically retires stale challenges and abandoned battles.
// The cron endpoint covers deployments that prefer external scheduling; this
// loop keeps a single-process deployment correct on its own.
func runSweepLoop(ctx context.Context, service *domain.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := service.Reconcile(ctx)
			if err != nil {
				log.Printf("reconcile sweep: %v", err)
				continue
			}
			if report.ExpiredChallenges > 0 || report.AbandonedBattles > 0 || report.Errors > 0 {
				log.Printf("reconcile sweep: expired=%d abandoned=%d errors=%d",
					report.ExpiredChallenges, report.AbandonedBattles, report.Errors)
			}
		}
	}
}
