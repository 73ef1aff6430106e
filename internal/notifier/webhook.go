package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

type RetryPolicy struct {
	Count   int
	Wait    time.Duration
	MaxWait time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	Count:   3,
	Wait:    2 * time.Second,
	MaxWait: 10 * time.Second,
}

// newClient retries transport errors, 429 and 5xx with resty's exponential backoff.
func newClient(policy RetryPolicy) *resty.Client {
	client := resty.New()

	client.
		SetRetryCount(policy.Count).
		SetRetryWaitTime(policy.Wait).
		SetRetryMaxWaitTime(policy.MaxWait).
		AddRetryCondition(func(response *resty.Response, err error) bool {
			if err != nil {
				return true
			}

			return response.StatusCode() == http.StatusTooManyRequests || response.StatusCode() >= http.StatusInternalServerError
		})

	return client
}

// WebhookSink posts Slack-style {"text": ...} messages.
type WebhookSink struct {
	url    string
	kinds  map[Kind]bool
	client *resty.Client
}

func NewWebhookSink(url string, policy RetryPolicy, kinds ...Kind) *WebhookSink {
	accepted := make(map[Kind]bool, len(kinds))
	for _, kind := range kinds {
		accepted[kind] = true
	}

	return &WebhookSink{
		url:    url,
		kinds:  accepted,
		client: newClient(policy),
	}
}

func (s *WebhookSink) Name() string {
	return "webhook"
}

func (s *WebhookSink) Accepts(n Notification) bool {
	return s.kinds[n.Kind]
}

func (s *WebhookSink) Send(ctx context.Context, n Notification) error {
	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"text": n.Message}).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}

	if response.IsError() {
		return fmt.Errorf("post webhook: unexpected status %s", response.Status())
	}

	return nil
}
