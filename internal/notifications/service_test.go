package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"podforge/internal/config"
	"podforge/internal/notifications"
)

func newService(t *testing.T, endpoint string) notifications.Service {
	t.Helper()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = endpoint
	cfg.Notifications.Stages = true
	cfg.Notifications.Completion = true
	cfg.Notifications.Errors = true
	return notifications.NewService(&cfg)
}

func TestNoopWithoutTopic(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunStarted(context.Background(), "solar energy"); err != nil {
		t.Fatalf("noop notify: %v", err)
	}
}

func TestPodcastCompletedPayload(t *testing.T) {
	t.Parallel()

	var gotTitle, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer server.Close()

	svc := newService(t, server.URL)
	err := svc.NotifyPodcastCompleted(context.Background(), "solar energy", "/out/final_podcast.wav", 93*time.Second, 12)
	if err != nil {
		t.Fatalf("NotifyPodcastCompleted: %v", err)
	}
	if gotTitle != "Podforge - Complete" {
		t.Fatalf("title = %q", gotTitle)
	}
	if !strings.Contains(gotBody, "12 segments") || !strings.Contains(gotBody, "final_podcast.wav") {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestErrorNotificationIncludesContext(t *testing.T) {
	t.Parallel()

	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer server.Close()

	svc := newService(t, server.URL)
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "research stage"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if !strings.Contains(gotBody, "research stage") || !strings.Contains(gotBody, "boom") {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := newService(t, server.URL)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from ntfy failure")
	}
}
