// Package notifier implements the fire-and-forget Notifier port the
// booking core dispatches ReminderDue and lifecycle notifications
// through. Delivery is out of scope for the core; this client only
// hands the request to an external notification service.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/saloncore/booking-core/pkg/logger"
)

// Notifier is the port the booking core consumes for client-facing
// notifications; the core never renders messages or talks to a chat
// provider directly.
type Notifier interface {
	Send(ctx context.Context, audience, templateID string, context_ map[string]interface{}, idempotencyKey string) error
}

// HTTPNotifier dispatches notifications to an external notification
// service over HTTP: a 10s-timeout http.Client POSTing JSON.
type HTTPNotifier struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

func NewHTTPNotifier(baseURL string, log *logger.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		logger:     log,
	}
}

type sendRequest struct {
	Audience       string                 `json:"audience"`
	TemplateID     string                 `json:"templateId"`
	Context        map[string]interface{} `json:"context"`
	IdempotencyKey string                 `json:"idempotencyKey"`
}

// Send posts the notification request and returns NotifierUnavailable on
// any transport or non-2xx failure; callers treat this as fire-and-forget
// and do not roll back the originating booking transition.
func (n *HTTPNotifier) Send(ctx context.Context, audience, templateID string, tplContext map[string]interface{}, idempotencyKey string) error {
	if n.baseURL == "" {
		n.logger.Debug("notifier base URL not configured, skipping send", "templateId", templateID)
		return nil
	}

	payload, err := json.Marshal(sendRequest{
		Audience:       audience,
		TemplateID:     templateID,
		Context:        tplContext,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return fmt.Errorf("NotifierUnavailable: failed to marshal request: %w", err)
	}

	url := n.baseURL + "/api/v1/notifications/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("NotifierUnavailable: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("notifier request failed", "templateId", templateID, "error", err)
		return fmt.Errorf("NotifierUnavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.logger.Error("notifier returned error status", "templateId", templateID, "status", resp.StatusCode)
		return fmt.Errorf("NotifierUnavailable: notifier returned status %d", resp.StatusCode)
	}
	return nil
}

// NullNotifier discards every notification, for local dev without a
// notification service running.
type NullNotifier struct {
	logger *logger.Logger
}

func NewNullNotifier(log *logger.Logger) *NullNotifier {
	return &NullNotifier{logger: log}
}

func (n *NullNotifier) Send(ctx context.Context, audience, templateID string, tplContext map[string]interface{}, idempotencyKey string) error {
	n.logger.Debug("notification send skipped (no notifier configured)", "audience", audience, "templateId", templateID)
	return nil
}
