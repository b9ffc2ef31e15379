package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	netmail "net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/evanschultz/unitask/internal/app"
)

var _ app.Mailer = (*SMTPMailer)(nil)

// SMTPConfig holds relay settings. Auth is PLAIN when Username is set.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers reminders through an SMTP relay.
type SMTPMailer struct {
	addr     string
	auth     smtp.Auth
	from     netmail.Address
	renderer Renderer
	send     sendFunc
	now      func() time.Time
}

// NewSMTPMailer constructs an SMTP mailer.
func NewSMTPMailer(cfg SMTPConfig, renderer Renderer) (*SMTPMailer, error) {
	from, err := netmail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse from address: %w", err)
	}
	m := &SMTPMailer{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:     *from,
		renderer: renderer,
		send:     smtp.SendMail,
		now:      time.Now,
	}
	if strings.TrimSpace(cfg.Username) != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m, nil
}

// SendReminder renders and relays one reminder. The relay call itself is not cancellable.
func (m *SMTPMailer) SendReminder(ctx context.Context, reminder app.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := m.renderer.Render(reminder)
	if err != nil {
		return err
	}
	raw, err := BuildMIME(m.from, msg, m.now())
	if err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, m.from.Address, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// BuildMIME encodes msg as a multipart/alternative message with text and HTML parts.
func BuildMIME(from netmail.Address, msg Message, date time.Time) ([]byte, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	}
	for _, p := range parts {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", p.contentType)
		header.Set("Content-Transfer-Encoding", "8bit")
		pw, err := w.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("create mime part: %w", err)
		}
		if _, err := pw.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("write mime part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close mime writer: %w", err)
	}

	to := netmail.Address{Name: msg.ToName, Address: msg.To}
	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\n", from.String())
	fmt.Fprintf(&out, "To: %s\r\n", to.String())
	fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&out, "Date: %s\r\n", date.Format(time.RFC1123Z))
	fmt.Fprint(&out, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", w.Boundary())
	out.Write(body.Bytes())
	return out.Bytes(), nil
}
