package signup

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"go.uber.org/zap"
)

// Hook runs after a record was created.
type Hook interface {
	Name() string
	OnCreate(ctx context.Context, r Record) error
}

// SheetColumns is the header row of the mirror sheet.
var SheetColumns = []string{"email", "deviceType", "locale", "sourceUrl", "referrer", "utm", "timestamp"}

// SheetMirror appends one CSV row per signup.
type SheetMirror struct {
	Path string
	Now  func() time.Time

	mu sync.Mutex
}

// NewSheetMirror returns a mirror appending to path.
func NewSheetMirror(path string) *SheetMirror {
	return &SheetMirror{Path: path, Now: time.Now}
}

// Name implements Hook.
func (m *SheetMirror) Name() string { return "sheet" }

// OnCreate implements Hook.
func (m *SheetMirror) OnCreate(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row, err := m.row(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
		return fmt.Errorf("creating sheet dir: %w", err)
	}
	f, err := os.OpenFile(m.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening sheet: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat sheet: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(SheetColumns); err != nil {
			return fmt.Errorf("writing sheet header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing sheet row: %w", err)
	}
	w.Flush()
	return w.Error()
}

func (m *SheetMirror) row(r Record) ([]string, error) {
	var utm string
	if len(r.UTM) > 0 {
		data, err := json.Marshal(r.UTM)
		if err != nil {
			return nil, fmt.Errorf("encoding utm: %w", err)
		}
		utm = string(data)
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	return []string{
		r.Email,
		r.DeviceType,
		r.Locale,
		r.SourceURL,
		r.Referrer,
		utm,
		now().UTC().Format(time.RFC3339),
	}, nil
}

// Message is an outgoing email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	Log *zap.Logger
}

// Send implements Mailer.
func (m LogMailer) Send(_ context.Context, msg Message) error {
	log := m.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("welcome message",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}

// DefaultWelcomeTemplate is the body of the welcome message.
const DefaultWelcomeTemplate = `Hi there,

Thanks for signing up! You're on the crew list and we will ping you before liftoff.
{{if .SiteURL}}
Keep an eye on {{.SiteURL}} for launch updates.
{{end}}
See you in orbit.
`

// Welcome sends a welcome message to every new signup.
type Welcome struct {
	Mailer  Mailer
	From    string
	Subject string
	SiteURL string

	tmpl *template.Template
}

// NewWelcome parses body (DefaultWelcomeTemplate when empty).
func NewWelcome(mailer Mailer, from, siteURL, body string) (*Welcome, error) {
	if strings.TrimSpace(body) == "" {
		body = DefaultWelcomeTemplate
	}
	tmpl, err := template.New("welcome").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing welcome template: %w", err)
	}
	return &Welcome{
		Mailer:  mailer,
		From:    from,
		Subject: "Welcome aboard",
		SiteURL: siteURL,
		tmpl:    tmpl,
	}, nil
}

// Name implements Hook.
func (w *Welcome) Name() string { return "welcome" }

// OnCreate implements Hook.
func (w *Welcome) OnCreate(ctx context.Context, r Record) error {
	var body bytes.Buffer
	data := struct {
		Record
		SiteURL string
	}{r, w.SiteURL}
	if err := w.tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("rendering welcome: %w", err)
	}
	return w.Mailer.Send(ctx, Message{
		From:    w.From,
		To:      r.Email,
		Subject: w.Subject,
		Body:    body.String(),
	})
}
