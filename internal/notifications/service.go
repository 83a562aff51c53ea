package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"copydesk/internal/config"
)

const userAgent = "Copydesk-Go/0.1.0"

// Service is the push-notification surface the pipeline uses. Every call is
// best effort: a failed notification is the caller's to log, never a reason
// to fail an item or a run.
type Service interface {
	NotifyRunStarted(ctx context.Context, count int) error
	NotifyRunCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyAwaitingReview(ctx context.Context, title, draftLink string) error
	NotifyItemFailed(ctx context.Context, title string, err error) error
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
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		runEvents: cfg.Notifications.RunEvents,
		review:    cfg.Notifications.Review,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	runEvents bool
	review    bool
	errors    bool
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, count int) error {
	if !n.runEvents {
		return nil
	}
	data := payload{
		title:   "Copydesk - Run Started",
		message: fmt.Sprintf("Started batch run with %d pending items", count),
		tags:    []string{"copydesk", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.runEvents {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "Copydesk - Run Complete"
		message = fmt.Sprintf("Batch run complete: %d items processed in %s", processed, durationText)
	} else {
		title = "Copydesk - Run Complete (with errors)"
		message = fmt.Sprintf("Batch run complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"copydesk", "run", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAwaitingReview(ctx context.Context, title, draftLink string) error {
	if !n.review {
		return nil
	}
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Ready for review: %s", title)
	if draftLink = strings.TrimSpace(draftLink); draftLink != "" {
		message += "\n" + draftLink
	}
	data := payload{
		title:   "Copydesk - Awaiting Review",
		message: message,
		tags:    []string{"copydesk", "review"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyItemFailed(ctx context.Context, title string, err error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Item failed")
	if title = strings.TrimSpace(title); title != "" {
		builder.WriteString(": ")
		builder.WriteString(title)
	}
	builder.WriteString("\n")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown error")
	}

	data := payload{
		title:    "Copydesk - Item Failed",
		message:  builder.String(),
		tags:     []string{"copydesk", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Copydesk - Test",
		message:  "Notification system test",
		tags:     []string{"copydesk", "test"},
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

// Noop returns a service that silently drops every notification.
func Noop() Service { return noopService{} }

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, int) error                        { return nil }
func (noopService) NotifyRunCompleted(context.Context, int, int, time.Duration) error  { return nil }
func (noopService) NotifyAwaitingReview(context.Context, string, string) error         { return nil }
func (noopService) NotifyItemFailed(context.Context, string, error) error              { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
