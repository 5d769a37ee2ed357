package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/techtrust/backend/config"
)

const sendEndpoint = "/v3/smtp/email"

// BrevoClient sends transactional email through the Brevo HTTP API.
// The API works over plain HTTPS, which survives hosts that block SMTP ports.
type BrevoClient struct {
	apiKey      string
	baseURL     string
	senderName  string
	senderEmail string
	httpClient  *http.Client
}

// NewBrevoClient constructs a Brevo client from config.
func NewBrevoClient(cfg config.MailConfig) (*BrevoClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("brevo api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.brevo.com"
	}

	return &BrevoClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		senderName:  cfg.SenderName,
		senderEmail: cfg.SenderEmail,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

type brevoParty struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoSendRequest struct {
	Sender      brevoParty   `json:"sender"`
	To          []brevoParty `json:"to"`
	Subject     string       `json:"subject"`
	TextContent string       `json:"textContent"`
}

// Send posts one message to the Brevo transactional endpoint.
func (c *BrevoClient) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(brevoSendRequest{
		Sender:      brevoParty{Name: c.senderName, Email: c.senderEmail},
		To:          []brevoParty{{Email: to}},
		Subject:     subject,
		TextContent: body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendEndpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
