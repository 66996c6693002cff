package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// Slack posts events to an incoming webhook.
type Slack struct {
	hookURL  string
	client   *http.Client
	attempts uint
	delay    time.Duration
	logger   *zap.Logger
}

// NewSlack creates a webhook notifier.
func NewSlack(hookURL string, logger *zap.Logger) *Slack {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Slack{
		hookURL:  hookURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: 3,
		delay:    time.Second,
		logger:   logger,
	}
}

type slackMessage struct {
	Text string `json:"text"`
}

// Notify posts the event text, retrying transient failures.
func (s *Slack) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(slackMessage{Text: event.Message()})
	if err != nil {
		return fmt.Errorf("failed to encode slack message: %w", err)
	}

	return retry.Do(
		func() error {
			return s.post(ctx, body)
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			s.logger.Debug("Retrying slack notification", zap.Uint("attempt", attempt), zap.Error(err))
		}),
	)
}

func (s *Slack) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.hookURL, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to build slack request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return retry.Unrecoverable(fmt.Errorf("slack returned status %d", resp.StatusCode))
	}
	return nil
}
