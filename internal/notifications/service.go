// Package notifications delivers optional ntfy push alerts for sync failures
// and queue drain summaries.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dialtone/internal/config"
)

const userAgent = "dialtone/0.1.0"

// Service defines the notification surface exposed to the sync and download
// components.
type Service interface {
	NotifySyncFailed(ctx context.Context, err error) error
	NotifyQueueDrained(ctx context.Context, downloaded, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifySyncFailed(ctx context.Context, err error) error {
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "Dialtone - Catalog Sync Failed",
		message:  fmt.Sprintf("Catalog refresh gave up: %s", detail),
		tags:     []string{"dialtone", "sync", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueDrained(ctx context.Context, downloaded, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "Dialtone - Downloads Complete"
		message = fmt.Sprintf("Audio cache filled: %d files in %s", downloaded, duration)
	} else {
		title = "Dialtone - Downloads Complete (with errors)"
		message = fmt.Sprintf("Audio cache: %d downloaded, %d failed in %s", downloaded, failed, duration)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"dialtone", "downloads", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Dialtone - Test",
		message: "Notifications are configured correctly",
		tags:    []string{"dialtone", "test"},
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
	return nil
}

type noopService struct{}

func (noopService) NotifySyncFailed(context.Context, error) error { return nil }
func (noopService) NotifyQueueDrained(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
