package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"microcredit/internal/core/services"
)

// WebhookHook posts settlement notices to a rewards service
type WebhookHook struct {
	url    string
	client *http.Client
}

// NewWebhookHook creates a hook posting to url
func NewWebhookHook(url string) *WebhookHook {
	return &WebhookHook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// LoanSettled posts the notice as JSON. Any non-2xx status is an error.
func (h *WebhookHook) LoanSettled(ctx context.Context, notice services.SettlementNotice) error {
	jsonData, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("rewards webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("rewards webhook returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// Noop accepts every notice
type Noop struct{}

func (Noop) LoanSettled(context.Context, services.SettlementNotice) error { return nil }

// New returns a webhook hook for url, or Noop when url is empty
func New(url string) services.SettlementHook {
	if url == "" {
		return Noop{}
	}
	return NewWebhookHook(url)
}
