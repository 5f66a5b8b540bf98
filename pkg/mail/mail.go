package mail

import (
	"bytes"
	"strconv"
	"strings"
	"text/template"

	"gopkg.in/gomail.v2"

	"github.com/oscied/orchestra/pkg/types"
)

// Mailer sends plain-text task notifications. A nil Mailer is valid and
// sends nothing, which is how deployments without an SMTP server run.
type Mailer struct {
	host     string
	port     int
	tls      bool
	from     string
	username string
	password string
}

// New creates a mailer. server is "host" or "host:port", port 25 by default.
func New(server string, tls bool, from, username, password string) *Mailer {
	host, port := server, 25
	if i := strings.LastIndexByte(server, ':'); i >= 0 {
		if p, err := strconv.Atoi(server[i+1:]); err == nil {
			host, port = server[:i], p
		}
	}
	return &Mailer{host: host, port: port, tls: tls, from: from, username: username, password: password}
}

var bodyTemplate = template.Must(template.New("notification").Parse(
	`Hello {{.Name}},

Your {{.Kind}} task {{.TaskID}} finished with status {{.Status}}.
{{if .Details}}
Details: {{.Details}}
{{end}}
The OSCIED orchestrator
`))

// NotifyTask mails a task outcome to its owner.
func (m *Mailer) NotifyTask(user *types.User, kind, taskID string, status types.TaskStatus, details string) error {
	if m == nil || user == nil || user.Mail == "" {
		return nil
	}

	var body bytes.Buffer
	err := bodyTemplate.Execute(&body, map[string]any{
		"Name":    user.Name(),
		"Kind":    kind,
		"TaskID":  taskID,
		"Status":  string(status),
		"Details": details,
	})
	if err != nil {
		return types.Wrap(types.ErrTransient, "render notification", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", user.Mail)
	msg.SetHeader("Subject", "Task "+taskID+" "+string(status))
	msg.SetBody("text/plain", body.String())

	dialer := gomail.NewDialer(m.host, m.port, m.username, m.password)
	if !m.tls {
		dialer.SSL = false
	}
	if err := dialer.DialAndSend(msg); err != nil {
		return types.Wrap(types.ErrTransient, "send notification", err)
	}
	return nil
}
