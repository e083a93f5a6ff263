package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"couchlog/internal/config"
)

const userAgent = "Couchlog-Go/0.1.0"

// Probe reports whether the catalog service is currently reachable. Used to
// gate the offline-only verbs.
type Probe func(ctx context.Context) bool

// Service defines the notification surface exposed to the daemon.
type Service interface {
	// NotifySessionStarted fires only while the catalog service is
	// unreachable, warning the user that progress is tracked offline.
	NotifySessionStarted(ctx context.Context, title string) error
	NotifyWatched(ctx context.Context, title string) error
	NotifyBacklogged(ctx context.Context, title string, pending int) error
	NotifyBacklogFlushed(ctx context.Context, succeeded, remaining int) error
	NotifyAuthRequired(ctx context.Context) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config, probe Probe) Service {
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
		probe:    probe,
		enabled:  cfg.Notifications,
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
	probe    Probe
	enabled  config.Notifications
}

func (n *ntfyService) NotifySessionStarted(ctx context.Context, title string) error {
	if !n.enabled.SessionStarted {
		return nil
	}
	if n.probe != nil && n.probe(ctx) {
		// Online tracking is routine; only offline tracking warrants a ping.
		return nil
	}
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Couchlog - Tracking Offline",
		message: fmt.Sprintf("Tracking offline: %s\nProgress will sync when the connection returns", title),
		tags:    []string{"couchlog", "session", "offline"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyWatched(ctx context.Context, title string) error {
	if !n.enabled.Watched {
		return nil
	}
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Couchlog - Marked Watched",
		message: fmt.Sprintf("Marked watched: %s", title),
		tags:    []string{"couchlog", "watched"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBacklogged(ctx context.Context, title string, pending int) error {
	if !n.enabled.Backlog {
		return nil
	}
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Couchlog - Queued Offline",
		message: fmt.Sprintf("Added to backlog: %s (%d pending)", title, pending),
		tags:    []string{"couchlog", "backlog", "queued"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBacklogFlushed(ctx context.Context, succeeded, remaining int) error {
	if !n.enabled.Backlog {
		return nil
	}
	var message string
	if remaining == 0 {
		message = fmt.Sprintf("Backlog synced: %d items reported", succeeded)
	} else {
		message = fmt.Sprintf("Backlog partially synced: %d reported, %d still pending", succeeded, remaining)
	}
	data := payload{
		title:   "Couchlog - Backlog Synced",
		message: message,
		tags:    []string{"couchlog", "backlog", "synced"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAuthRequired(ctx context.Context) error {
	if !n.enabled.Errors {
		return nil
	}
	data := payload{
		title:    "Couchlog - Sign In Required",
		message:  "Simkl rejected the access token. Run 'couchlog auth' to sign in again.",
		tags:     []string{"couchlog", "auth", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.enabled.Errors {
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
		title:    "Couchlog - Error",
		message:  builder.String(),
		tags:     []string{"couchlog", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Couchlog - Test",
		message:  "Notification system test",
		tags:     []string{"couchlog", "test"},
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

func (noopService) NotifySessionStarted(context.Context, string) error      { return nil }
func (noopService) NotifyWatched(context.Context, string) error             { return nil }
func (noopService) NotifyBacklogged(context.Context, string, int) error     { return nil }
func (noopService) NotifyBacklogFlushed(context.Context, int, int) error    { return nil }
func (noopService) NotifyAuthRequired(context.Context) error                { return nil }
func (noopService) NotifyError(context.Context, error, string) error        { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
