package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/openfeeds/oracle-aggregator/pkg/logging"
	"github.com/openfeeds/oracle-aggregator/pkg/metrics"
)

// Alerter delivers alert messages when failure or health thresholds are
// crossed. The engine only guarantees a descriptive message; the channel
// is up to the implementation.
type Alerter interface {
	SendAlert(message string)
}

// LogAlerter writes alerts to the error log.
type LogAlerter struct {
	logger *logging.Logger
}

// NewLogAlerter creates an alerter backed by the logger.
func NewLogAlerter(logger *logging.Logger) *LogAlerter {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &LogAlerter{logger: logger}
}

// SendAlert logs the alert message.
func (a *LogAlerter) SendAlert(message string) {
	metrics.RecordAlert()
	a.logger.Error("ALERT", "message", message)
}

// WebhookAlerter POSTs alerts as JSON to a configured endpoint, falling
// back to the log on delivery failure.
type WebhookAlerter struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

// NewWebhookAlerter creates an alerter that posts to the given URL.
func NewWebhookAlerter(url string, timeout time.Duration, logger *logging.Logger) *WebhookAlerter {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// SendAlert posts the alert message as {"message": ...}.
func (a *WebhookAlerter) SendAlert(message string) {
	metrics.RecordAlert()

	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		a.logger.Error("Failed to encode alert", "error", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		a.logger.Error("Failed to build alert request", "error", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Error("Alert delivery failed", "url", a.url, "message", message, "error", err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.Error("Alert endpoint returned error",
			"url", a.url, "status", fmt.Sprintf("%d", resp.StatusCode), "message", message)
	}
}
