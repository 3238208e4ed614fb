package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Mail é uma mensagem de texto simples
type Mail struct {
	To      string
	Subject string
	Text    string
}

// Mailer entrega emails transacionais
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

type mailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// HTTPMailer envia emails por uma API HTTP de relay, protegida por circuit breaker
type HTTPMailer struct {
	client  *resty.Client
	from    string
	breaker *gobreaker.CircuitBreaker[*resty.Response]
}

// NewHTTPMailer cria uma nova instância de HTTPMailer
func NewHTTPMailer(cfg MailConfig) *HTTPMailer {
	client := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200*time.Millisecond).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetHeader("Content-Type", "application/json")
	if cfg.APIToken != "" {
		client.SetAuthToken(cfg.APIToken)
	}

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "mail-relay",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("ℹ️ [MAILER] circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &HTTPMailer{client: client, from: cfg.From, breaker: breaker}
}

func (m *HTTPMailer) Send(ctx context.Context, mail Mail) error {
	_, err := m.breaker.Execute(func() (*resty.Response, error) {
		resp, err := m.client.R().
			SetContext(ctx).
			SetBody(mailRequest{From: m.from, To: mail.To, Subject: mail.Subject, Text: mail.Text}).
			Post("/messages")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return resp, fmt.Errorf("mail relay returned %s", resp.Status())
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrMailerUnavailable, err)
		}
		return fmt.Errorf("failed to send mail to %s: %w", mail.To, err)
	}
	return nil
}
