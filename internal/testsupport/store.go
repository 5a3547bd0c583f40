package testsupport

import (
	"context"
	"testing"

	"podforge/internal/config"
	"podforge/internal/session"
)

// MustOpenStore opens a session.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *session.Store {
	t.Helper()

	store, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSession creates a session row for tests using the provided store.
func NewSession(t testing.TB, store *session.Store, id, topic, outputDir string) *session.Session {
	t.Helper()

	sess, err := store.New(context.Background(), id, topic, outputDir)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return sess
}
