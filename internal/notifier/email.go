package notifier

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const DefaultSendGridURL = "https://api.sendgrid.com/v3/mail/send"

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// EmailSink sends notifications that carry a recipient address through the SendGrid v3 API.
type EmailSink struct {
	url    string
	from   string
	client *resty.Client
}

func NewEmailSink(url string, apiKey string, from string, policy RetryPolicy) *EmailSink {
	client := newClient(policy)
	client.SetAuthToken(apiKey)

	return &EmailSink{
		url:    url,
		from:   from,
		client: client,
	}
}

func (s *EmailSink) Name() string {
	return "email"
}

func (s *EmailSink) Accepts(n Notification) bool {
	return n.Email != "" && (n.Kind == KindUserWelcome || n.Kind == KindPointsAwarded)
}

func (s *EmailSink) Send(ctx context.Context, n Notification) error {
	mail := sendGridMail{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: n.Email}}}},
		From:             sendGridAddress{Email: s.from},
		Subject:          n.Subject,
		Content:          []sendGridContent{{Type: "text/plain", Value: n.Message}},
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(mail).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	if response.IsError() {
		return fmt.Errorf("send email: unexpected status %s: %s", response.Status(), response.String())
	}

	return nil
}
