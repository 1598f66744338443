package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"corral/internal/config"
)

const userAgent = "Corral/0.1.0"

// Service defines the best-effort event surface ingestion components publish
// to. Implementations must treat every publish as optional: failures are
// returned for logging but callers never let them affect the run.
type Service interface {
	NotifyRunStarted(ctx context.Context, runID string) error
	NotifyItemQueued(ctx context.Context, objectKey string) error
	NotifyRunCompleted(ctx context.Context, runID string, processed int, duration time.Duration) error
	NotifyRunFailed(ctx context.Context, runID string, cause string) error
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
		runs:     cfg.Notifications.Runs,
		items:    cfg.Notifications.Items,
		errors:   cfg.Notifications.Errors,
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
	runs     bool
	items    bool
	errors   bool
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, runID string) error {
	if !n.runs {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Corral - Ingestion Started",
		message: fmt.Sprintf("Ingestion run %s started", runID),
		tags:    []string{"corral", "run", "started"},
	})
}

func (n *ntfyService) NotifyItemQueued(ctx context.Context, objectKey string) error {
	if !n.items {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Corral - Item Queued",
		message: fmt.Sprintf("Queued for processing: %s", objectKey),
		tags:    []string{"corral", "item", "queued"},
	})
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, runID string, processed int, duration time.Duration) error {
	if !n.runs {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Corral - Ingestion Complete",
		message: fmt.Sprintf("Run %s processed %d items in %s", runID, processed, duration.Round(time.Second)),
		tags:    []string{"corral", "run", "complete"},
	})
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, runID string, cause string) error {
	if !n.errors {
		return nil
	}
	return n.send(ctx, payload{
		title:    "Corral - Ingestion Failed",
		message:  fmt.Sprintf("Run %s failed: %s", runID, cause),
		tags:     []string{"corral", "run", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:   "Corral - Test",
		message: "Notifications are configured correctly",
		tags:    []string{"corral", "test"},
	})
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

func (noopService) NotifyRunStarted(context.Context, string) error { return nil }
func (noopService) NotifyItemQueued(context.Context, string) error { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, int, time.Duration) error {
	return nil
}
func (noopService) NotifyRunFailed(context.Context, string, string) error { return nil }
func (noopService) TestNotification(context.Context) error                { return nil }
