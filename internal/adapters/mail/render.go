package mail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/evanschultz/unitask/internal/app"
	"github.com/evanschultz/unitask/internal/domain"
	"github.com/yuin/goldmark"
)

// Message is one composed reminder ready for a transport.
type Message struct {
	To       string
	ToName   string
	Subject  string
	Markdown string
	Text     string
	HTML     string
}

// Renderer composes reminder messages.
type Renderer struct {
	SubjectPrefix string
	BaseURL       string
}

type reminderView struct {
	Name        string
	GeneratedAt string
	Teams       []teamView
	BaseURL     string
}

type teamView struct {
	Name   string
	Boards []boardView
}

type boardView struct {
	Name      string
	Code      string
	Remaining string
	Overdue   bool
	Tasks     []taskView
}

type taskView struct {
	Name      string
	Deadline  string
	Remaining string
	Pinned    bool
}

const deadlineLayout = "Mon 02 Jan 15:04 MST"

var markdownTmpl = template.Must(template.New("reminder.md").Parse(`Hi {{.Name}},

These deadlines need your attention as of {{.GeneratedAt}}.
{{range .Teams}}
## {{.Name}}
{{range .Boards}}
### {{.Name}}{{if .Code}} ({{.Code}}){{end}}: {{if .Overdue}}board OVERDUE{{else}}board due in {{.Remaining}}{{end}}

{{range .Tasks}}- {{if .Pinned}}**{{.Name}}**{{else}}{{.Name}}{{end}}, due {{.Deadline}} ({{.Remaining}})
{{end}}{{end}}{{end}}{{if .BaseURL}}
[Open unitask]({{.BaseURL}})
{{end}}`))

var textTmpl = template.Must(template.New("reminder.txt").Parse(`Hi {{.Name}},

These deadlines need your attention as of {{.GeneratedAt}}.
{{range .Teams}}
{{.Name}}
{{range .Boards}}
  {{.Name}}{{if .Code}} [{{.Code}}]{{end}}: {{if .Overdue}}OVERDUE{{else}}{{.Remaining}} left{{end}}
{{range .Tasks}}    - {{.Name}}, due {{.Deadline}} ({{.Remaining}})
{{end}}{{end}}{{end}}{{if .BaseURL}}
{{.BaseURL}}
{{end}}`))

// Render composes subject, markdown, plain-text and HTML bodies for one reminder.
func (r Renderer) Render(reminder app.Reminder) (Message, error) {
	view, tasks := buildView(reminder, r.BaseURL)

	var md, text bytes.Buffer
	if err := markdownTmpl.Execute(&md, view); err != nil {
		return Message{}, fmt.Errorf("render markdown: %w", err)
	}
	if err := textTmpl.Execute(&text, view); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	var html bytes.Buffer
	if err := goldmark.Convert(md.Bytes(), &html); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}

	return Message{
		To:       reminder.Email,
		ToName:   reminder.DisplayName,
		Subject:  r.subject(tasks, len(view.Teams)),
		Markdown: md.String(),
		Text:     text.String(),
		HTML:     html.String(),
	}, nil
}

func (r Renderer) subject(tasks, teams int) string {
	noun := "tasks need"
	if tasks == 1 {
		noun = "task needs"
	}
	where := fmt.Sprintf("%d teams", teams)
	if teams == 1 {
		where = "1 team"
	}
	return fmt.Sprintf("%s%d %s attention across %s", r.SubjectPrefix, tasks, noun, where)
}

// buildView resolves the reminder's team entries into display rows and counts tasks.
func buildView(reminder app.Reminder, baseURL string) (reminderView, int) {
	now := reminder.GeneratedAt
	view := reminderView{
		Name:        reminder.DisplayName,
		GeneratedAt: now.UTC().Format(deadlineLayout),
		BaseURL:     strings.TrimSpace(baseURL),
	}
	if view.Name == "" {
		view.Name = reminder.Email
	}

	total := 0
	for _, entry := range reminder.Teams {
		boards := reminder.BoardsFor(entry)
		if len(boards) == 0 {
			continue
		}
		team := teamView{Name: entry.TeamName}
		for _, b := range boards {
			row := boardView{
				Name:      b.Board.Name,
				Code:      b.Board.Code,
				Remaining: domain.RemainingUntil(b.Board.Deadline, now).String(),
				Overdue:   b.Overdue,
			}
			for _, task := range b.Tasks {
				row.Tasks = append(row.Tasks, taskView{
					Name:      task.Name,
					Deadline:  formatDeadline(task.Deadline),
					Remaining: domain.RemainingUntil(task.Deadline, now).String(),
					Pinned:    task.Pinned,
				})
			}
			total += len(row.Tasks)
			team.Boards = append(team.Boards, row)
		}
		view.Teams = append(view.Teams, team)
	}
	return view, total
}

func formatDeadline(t time.Time) string {
	return t.UTC().Format(deadlineLayout)
}
