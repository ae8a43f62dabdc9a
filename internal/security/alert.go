package security

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/conclave-mcp/orchestrator/pkg/logger"
)

// AlertSink receives security findings as they are detected.
type AlertSink interface {
	Notify(ctx context.Context, subject, tool string, findings []Finding)
}

// LogSink logs findings through the shared logger; it is always active
// alongside any configured webhook.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink wraps log for use as an AlertSink.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(ctx context.Context, subject, tool string, findings []Finding) {
	for _, f := range findings {
		s.log.WithFields(map[string]any{
			"subject":  subject,
			"tool":     tool,
			"path":     f.Path,
			"severity": f.Severity,
			"finding":  f.Name,
		}).Warn("security finding")
	}
}

// WebhookSink posts findings to an external URL, throttled with a token
// bucket so a burst of findings cannot flood the receiver (teacher
// precedent: infrastructure/ratelimit.RateLimiter over golang.org/x/time/rate).
type WebhookSink struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewWebhookSink posts to url at most ratePerSecond times per second, with
// burst allowed immediately after idle periods.
func NewWebhookSink(url string, ratePerSecond float64, burst int, log *logger.Logger) *WebhookSink {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &WebhookSink{
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		log:     log,
	}
}

type webhookPayload struct {
	Subject  string    `json:"subject"`
	Tool     string    `json:"tool"`
	Findings []Finding `json:"findings"`
}

func (s *WebhookSink) Notify(ctx context.Context, subject, tool string, findings []Finding) {
	if !s.limiter.Allow() {
		s.log.WithField("tool", tool).Warn("security alert webhook throttled, dropping notification")
		return
	}
	body, err := json.Marshal(webhookPayload{Subject: subject, Tool: tool, Findings: findings})
	if err != nil {
		s.log.WithField("error", err).Error("marshal security alert payload")
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.log.WithField("error", err).Error("build security alert request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		s.log.WithField("error", err).Warn("security alert webhook delivery failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.log.WithField("status", resp.StatusCode).Warn("security alert webhook returned non-2xx")
	}
}

// FanoutSink notifies every configured sink in turn.
type FanoutSink struct {
	sinks []AlertSink
}

// NewFanoutSink combines multiple sinks into one.
func NewFanoutSink(sinks ...AlertSink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

func (s *FanoutSink) Notify(ctx context.Context, subject, tool string, findings []Finding) {
	for _, sink := range s.sinks {
		sink.Notify(ctx, subject, tool, findings)
	}
}
