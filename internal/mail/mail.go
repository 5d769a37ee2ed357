package mail

import (
	"context"
	"errors"
)

// ErrTimeout is returned when the mail provider does not answer within the
// configured deadline. The caller's OTP state is already persisted at that
// point, so the code stays usable.
var ErrTimeout = errors.New("mail dispatch timed out")

// Sender delivers a single plain-text message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Mailer wraps a Sender backend with a stable API. A nil backend means the
// notification sink is not configured.
type Mailer struct {
	backend Sender
}

// New constructs a Mailer for the provided backend. backend may be nil.
func New(backend Sender) *Mailer {
	return &Mailer{backend: backend}
}

// Configured reports whether a backend is available.
func (m *Mailer) Configured() bool {
	return m != nil && m.backend != nil
}

// Send delivers a message through the configured backend.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if !m.Configured() {
		return errors.New("mail backend is not configured")
	}
	return m.backend.Send(ctx, to, subject, body)
}
