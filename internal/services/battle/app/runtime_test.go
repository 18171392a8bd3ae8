package app

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"path/filepath"
	"testing"
	"time"
)

func setAuthEnv(t *testing.T) {
	t.Helper()
	publicKey, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	t.Setenv("ARENA_AUTH_ISSUER", "https://auth.test")
	t.Setenv("ARENA_AUTH_AUDIENCE", "arena")
	t.Setenv("ARENA_AUTH_PUBLIC_KEY", base64.StdEncoding.EncodeToString(publicKey))
}

func TestRunRequiresAuthConfig(t *testing.T) {
	t.Setenv("ARENA_AUTH_ISSUER", "")
	t.Setenv("ARENA_AUTH_AUDIENCE", "")
	t.Setenv("ARENA_AUTH_PUBLIC_KEY", "")

	err := Run(context.Background(), RuntimeConfig{
		Addr:   "127.0.0.1:0",
		DBPath: filepath.Join(t.TempDir(), "battle.db"),
	})
	if err == nil {
		t.Fatal("expected error without auth configuration")
	}
}

func TestRunServesUntilContextEnds(t *testing.T) {
	setAuthEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := Run(ctx, RuntimeConfig{
		Addr:          "127.0.0.1:0",
		DBPath:        filepath.Join(t.TempDir(), "battle.db"),
		SweepInterval: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}
