package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dealerdesk/lead-engine/pkg/logger"
)

type EmailRequest struct {
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Content     string `json:"content"`
	HTMLContent string `json:"html_content,omitempty"`
	SenderName  string `json:"sender_name,omitempty"`
}

type EmailResponse struct {
	MessageID   string    `json:"message_id"`
	Status      string    `json:"status"`
	ProcessedAt time.Time `json:"processed_at"`
}

// EmailClient talks to the email delivery provider. Transient provider
// failures are retried in here; callers only see the final outcome.
type EmailClient struct {
	http *httpClient
}

func NewEmailClient(baseURL string, timeout time.Duration) *EmailClient {
	return &EmailClient{
		http: newHTTPClient(baseURL, timeout),
	}
}

func (c *EmailClient) Send(ctx context.Context, req *EmailRequest) (*EmailResponse, error) {
	if req.To == "" {
		return nil, ErrInvalidRecipient
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal email request: %w", err)
	}

	start := time.Now()
	raw, err := c.http.postJSON(ctx, "/api/v1/email/send", body)
	if err != nil {
		return nil, err
	}

	var resp EmailResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal email response: %w", err)
	}

	logger.Info("email handed to provider",
		"message_id", resp.MessageID,
		"status", resp.Status,
		"latency_ms", time.Since(start).Milliseconds())
	return &resp, nil
}
