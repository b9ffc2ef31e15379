package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/unitask/internal/app"
	"github.com/nats-io/nats.go"
)

var _ app.Mailer = (*NATSMailer)(nil)

// Publisher publishes one payload on a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, payload []byte) error
}

// ReminderEvent is the JSON payload published for downstream mail workers.
type ReminderEvent struct {
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Subject     string    `json:"subject"`
	Text        string    `json:"text"`
	HTML        string    `json:"html"`
	Teams       []string  `json:"teams"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NATSMailer hands rendered reminders to a NATS subject instead of sending mail.
type NATSMailer struct {
	pub      Publisher
	subject  string
	renderer Renderer
	conn     *nats.Conn
}

// ConnectNATS dials url and returns a mailer publishing under subject.
func ConnectNATS(url, subject string, renderer Renderer) (*NATSMailer, error) {
	conn, err := nats.Connect(url, nats.Name("unitask-reminders"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	m := NewNATSMailer(conn, subject, renderer)
	m.conn = conn
	return m, nil
}

// NewNATSMailer wraps an existing publisher.
func NewNATSMailer(pub Publisher, subject string, renderer Renderer) *NATSMailer {
	return &NATSMailer{
		pub:      pub,
		subject:  strings.TrimSuffix(strings.TrimSpace(subject), "."),
		renderer: renderer,
	}
}

// Close drains the owned connection, if any.
func (m *NATSMailer) Close() error {
	if m.conn == nil {
		return nil
	}
	err := m.conn.Drain()
	m.conn.Close()
	return err
}

// SendReminder publishes one reminder on <subject>.<recipient token>.
func (m *NATSMailer) SendReminder(ctx context.Context, reminder app.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := m.renderer.Render(reminder)
	if err != nil {
		return err
	}
	teams := make([]string, 0, len(reminder.Teams))
	for _, entry := range reminder.Teams {
		teams = append(teams, entry.TeamName)
	}
	payload, err := json.Marshal(ReminderEvent{
		Email:       msg.To,
		DisplayName: msg.ToName,
		Subject:     msg.Subject,
		Text:        msg.Text,
		HTML:        msg.HTML,
		Teams:       teams,
		GeneratedAt: reminder.GeneratedAt,
	})
	if err != nil {
		return fmt.Errorf("encode reminder event: %w", err)
	}
	subject := m.subject + "." + SubjectToken(msg.To)
	if err := m.pub.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// SubjectToken maps an email to a single NATS subject token.
func SubjectToken(email string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		case '@':
			return '-'
		}
		return r
	}, strings.ToLower(email))
}
