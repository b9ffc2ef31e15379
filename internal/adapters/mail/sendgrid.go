package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/evanschultz/unitask/internal/app"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

var _ app.Mailer = (*SendgridMailer)(nil)

// SendgridMailer delivers reminders through the SendGrid v3 API.
type SendgridMailer struct {
	key      string
	host     string
	from     *sgmail.Email
	renderer Renderer
	api      func(rest.Request) (*rest.Response, error)
}

// NewSendgridMailer constructs a SendGrid mailer.
func NewSendgridMailer(key, fromName, fromEmail string, renderer Renderer) *SendgridMailer {
	return &SendgridMailer{
		key:      key,
		host:     sendgridHost,
		from:     sgmail.NewEmail(fromName, fromEmail),
		renderer: renderer,
		api:      sendgrid.API,
	}
}

// SendReminder renders one reminder and posts it. Any 4xx or 5xx answer is an error.
func (s *SendgridMailer) SendReminder(ctx context.Context, reminder app.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.renderer.Render(reminder)
	if err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := s.api(req)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", msg.To, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send to %s: status %d: %s", msg.To, res.StatusCode, res.Body)
	}
	return nil
}

func (s *SendgridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.Text),
		sgmail.NewContent("text/html", msg.HTML),
	)
	return m
}
