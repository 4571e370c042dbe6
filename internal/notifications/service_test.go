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

	"dialtone/internal/notifications"
	"dialtone/internal/testsupport"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()
	var requests []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func newService(t *testing.T, topic string) notifications.Service {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = topic
	return notifications.NewService(cfg)
}

func TestNotifySyncFailedSendsHighPriority(t *testing.T) {
	server, requests := newNtfyServer(t, http.StatusOK)
	svc := newService(t, server.URL)

	if err := svc.NotifySyncFailed(context.Background(), errors.New("network error: fetch catalog")); err != nil {
		t.Fatalf("NotifySyncFailed: %v", err)
	}

	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	got := (*requests)[0]
	if !strings.Contains(got.title, "Sync Failed") {
		t.Fatalf("unexpected title: %q", got.title)
	}
	if got.priority != "high" {
		t.Fatalf("sync failures should be high priority, got %q", got.priority)
	}
	if !strings.Contains(got.body, "network error") {
		t.Fatalf("error detail missing from body: %q", got.body)
	}
}

func TestNotifyQueueDrainedMessage(t *testing.T) {
	server, requests := newNtfyServer(t, http.StatusOK)
	svc := newService(t, server.URL)

	if err := svc.NotifyQueueDrained(context.Background(), 5, 0, 90*time.Second); err != nil {
		t.Fatalf("NotifyQueueDrained: %v", err)
	}
	if err := svc.NotifyQueueDrained(context.Background(), 3, 2, time.Second); err != nil {
		t.Fatalf("NotifyQueueDrained with failures: %v", err)
	}

	if len(*requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*requests))
	}
	clean := (*requests)[0]
	if strings.Contains(clean.title, "errors") || !strings.Contains(clean.body, "5 files") {
		t.Fatalf("unexpected clean drain notification: %#v", clean)
	}
	dirty := (*requests)[1]
	if !strings.Contains(dirty.title, "errors") || !strings.Contains(dirty.body, "2 failed") {
		t.Fatalf("unexpected failed drain notification: %#v", dirty)
	}
}

func TestSendReportsServerErrors(t *testing.T) {
	server, _ := newNtfyServer(t, http.StatusForbidden)
	svc := newService(t, server.URL)

	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestEmptyTopicDisablesNotifications(t *testing.T) {
	svc := newService(t, "")

	// No server anywhere; these would fail if they touched the network.
	if err := svc.NotifySyncFailed(context.Background(), errors.New("x")); err != nil {
		t.Fatalf("noop NotifySyncFailed: %v", err)
	}
	if err := svc.NotifyQueueDrained(context.Background(), 1, 0, time.Second); err != nil {
		t.Fatalf("noop NotifyQueueDrained: %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("noop TestNotification: %v", err)
	}
}
