// Package notifications delivers pipeline events via ntfy. When no topic is
// configured, a noop implementation is returned so callers never need to
// guard their notification calls.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podforge/internal/config"
)

const userAgent = "Podforge/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyRunStarted(ctx context.Context, topic string) error
	NotifyStageCompleted(ctx context.Context, stageName, topic string) error
	NotifyPodcastCompleted(ctx context.Context, topic, outputFile string, duration time.Duration, segmentCount int) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	endpoint := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: timeout},
		stages:     cfg.Notifications.Stages,
		completion: cfg.Notifications.Completion,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	stages     bool
	completion bool
	errors     bool
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, topic string) error {
	if !n.stages {
		return nil
	}
	data := payload{
		title:   "Podforge - Run Started",
		message: fmt.Sprintf("Generating podcast: %s", strings.TrimSpace(topic)),
		tags:    []string{"podforge", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStageCompleted(ctx context.Context, stageName, topic string) error {
	if !n.stages {
		return nil
	}
	data := payload{
		title:   "Podforge - Stage Complete",
		message: fmt.Sprintf("%s complete for: %s", strings.TrimSpace(stageName), strings.TrimSpace(topic)),
		tags:    []string{"podforge", "stage", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPodcastCompleted(ctx context.Context, topic, outputFile string, duration time.Duration, segmentCount int) error {
	if !n.completion {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	message := fmt.Sprintf("Podcast ready: %s (%d segments, %s)", strings.TrimSpace(topic), segmentCount, duration)
	if outputFile = strings.TrimSpace(outputFile); outputFile != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, outputFile)
	}
	data := payload{
		title:    "Podforge - Complete",
		message:  message,
		tags:     []string{"podforge", "podcast", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Podforge - Error",
		message:  builder.String(),
		tags:     []string{"podforge", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Podforge - Test",
		message:  "Notification system test",
		tags:     []string{"podforge", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string) error             { return nil }
func (noopService) NotifyStageCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyPodcastCompleted(context.Context, string, string, time.Duration, int) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
