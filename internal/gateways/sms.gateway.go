package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/dealerdesk/lead-engine/pkg/logger"
)

type SMSRequest struct {
	To         string   `json:"to"`
	Message    string   `json:"message"`
	MediaURLs  []string `json:"media_urls,omitempty"`
	SenderName string   `json:"sender_name,omitempty"`
}

type SMSResponse struct {
	MessageID   string    `json:"message_id"`
	Status      string    `json:"status"`
	Cost        float64   `json:"cost"`
	Segments    int       `json:"segments"`
	ProcessedAt time.Time `json:"processed_at"`
}

// SMSClient talks to the SMS provider. Besides the send path it exposes the
// provider-side opt-out registry, which catches carrier-level STOP replies
// our own consent flags never see.
type SMSClient struct {
	http *httpClient
}

func NewSMSClient(baseURL string, timeout time.Duration) *SMSClient {
	return &SMSClient{
		http: newHTTPClient(baseURL, timeout),
	}
}

func (c *SMSClient) Send(ctx context.Context, req *SMSRequest) (*SMSResponse, error) {
	normalized, err := NormalizePhone(req.To)
	if err != nil {
		return nil, err
	}
	req.To = normalized

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal sms request: %w", err)
	}

	start := time.Now()
	raw, err := c.http.postJSON(ctx, "/api/v1/sms/send", body)
	if err != nil {
		return nil, err
	}

	var resp SMSResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal sms response: %w", err)
	}

	logger.Info("sms handed to provider",
		"message_id", resp.MessageID,
		"status", resp.Status,
		"segments", resp.Segments,
		"latency_ms", time.Since(start).Milliseconds())
	return &resp, nil
}

// IsOptedOut checks the provider's opt-out registry for a number. On lookup
// failure the number is treated as opted in; the provider rejects the send
// anyway if it does hold an opt-out.
func (c *SMSClient) IsOptedOut(ctx context.Context, phone string) (bool, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return false, err
	}

	raw, err := c.http.get(ctx, "/api/v1/sms/optout/"+url.PathEscape(normalized))
	if err != nil {
		logger.Warn("provider opt-out lookup failed", "error", err)
		return false, nil
	}

	var resp struct {
		OptedOut bool `json:"opted_out"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false, fmt.Errorf("unmarshal optout response: %w", err)
	}
	return resp.OptedOut, nil
}
