package mail

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/evanschultz/unitask/internal/app"
)

// defaultWrapWidth is the glamour word-wrap width for console output.
const defaultWrapWidth = 96

var _ app.Mailer = (*ConsoleMailer)(nil)

// ConsoleMailer writes reminders to a terminal instead of delivering them.
type ConsoleMailer struct {
	mu       sync.Mutex
	out      io.Writer
	from     string
	renderer Renderer
	term     *glamour.TermRenderer
}

// ConsoleOptions configures console output. Styled enables glamour rendering.
type ConsoleOptions struct {
	From      string
	Styled    bool
	WrapWidth int
}

// NewConsoleMailer constructs a console mailer writing to out.
func NewConsoleMailer(out io.Writer, renderer Renderer, opts ConsoleOptions) (*ConsoleMailer, error) {
	m := &ConsoleMailer{
		out:      out,
		from:     opts.From,
		renderer: renderer,
	}
	if opts.Styled {
		term, err := NewTermRenderer(opts.WrapWidth)
		if err != nil {
			return nil, err
		}
		m.term = term
	}
	return m, nil
}

// NewTermRenderer returns the glamour renderer used for styled terminal output.
func NewTermRenderer(width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = defaultWrapWidth
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return term, nil
}

// SendReminder renders the reminder and prints it with a mail-like header.
func (m *ConsoleMailer) SendReminder(ctx context.Context, reminder app.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := m.renderer.Render(reminder)
	if err != nil {
		return err
	}
	body := msg.Text
	if m.term != nil {
		styled, err := m.term.Render(msg.Markdown)
		if err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		body = strings.TrimRight(styled, "\n") + "\n"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, err = fmt.Fprintf(m.out, "From: %s\nTo: %s\nSubject: %s\n\n%s%s\n", m.from, msg.To, msg.Subject, body, strings.Repeat("-", 40))
	return err
}
