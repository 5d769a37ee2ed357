package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/techtrust/backend/config"
)

func newTestBrevoClient(t *testing.T, baseURL string, timeout time.Duration) *BrevoClient {
	t.Helper()
	client, err := NewBrevoClient(config.MailConfig{
		APIKey:      "test-key",
		APIBaseURL:  baseURL,
		SenderName:  "Tech Trust",
		SenderEmail: "no-reply@techtrust.com",
		Timeout:     timeout,
	})
	if err != nil {
		t.Fatalf("NewBrevoClient error: %v", err)
	}
	return client
}

func TestBrevoSend(t *testing.T) {
	var got brevoSendRequest
	var gotAPIKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != sendEndpoint {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAPIKey = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"test"}`))
	}))
	defer server.Close()

	client := newTestBrevoClient(t, server.URL, 5*time.Second)
	if err := client.Send(context.Background(), "dev@example.com", "Verification Otp Code", "Your code is 123456"); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if gotAPIKey != "test-key" {
		t.Fatalf("api key not forwarded, got %q", gotAPIKey)
	}
	if len(got.To) != 1 || got.To[0].Email != "dev@example.com" {
		t.Fatalf("unexpected recipients: %+v", got.To)
	}
	if got.Sender.Email != "no-reply@techtrust.com" {
		t.Fatalf("unexpected sender: %+v", got.Sender)
	}
	if got.Subject != "Verification Otp Code" || got.TextContent != "Your code is 123456" {
		t.Fatalf("unexpected content: %+v", got)
	}
}

func TestBrevoSend_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestBrevoClient(t, server.URL, 5*time.Second)
	err := client.Send(context.Background(), "dev@example.com", "subject", "body")
	if err == nil {
		t.Fatalf("expected error for 401 response")
	}
	if errors.Is(err, ErrTimeout) {
		t.Fatalf("api error must not map to ErrTimeout: %v", err)
	}
}

func TestBrevoSend_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := newTestBrevoClient(t, server.URL, 50*time.Millisecond)
	err := client.Send(context.Background(), "dev@example.com", "subject", "body")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestMailer_NilBackend(t *testing.T) {
	mailer := New(nil)
	if mailer.Configured() {
		t.Fatalf("nil backend must report unconfigured")
	}
	if err := mailer.Send(context.Background(), "dev@example.com", "s", "b"); err == nil {
		t.Fatalf("expected error sending through unconfigured mailer")
	}
}
