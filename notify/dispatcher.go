package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/Jobsidney/FinanceFormFlows/models"
)

// Notification is the content handed to a dispatcher for one accepted
// submission.
type Notification struct {
	SubmissionID string
	FormName     string
	SubmittedBy  string
	SubmittedAt  time.Time
	Data         map[string]models.Value
	Files        []models.FileRef
}

// Dispatcher delivers one notification. A nil return means delivered.
// Failures wrapped with Permanent are never retried; every other error
// is treated as transient and retry-eligible.
type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}

// PermanentError marks a dispatch failure that no retry can fix, such
// as missing recipient configuration.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error { return &PermanentError{Err: err} }

// IsPermanent reports whether err carries a PermanentError anywhere in
// its chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// EmailConfig configures the SMTP dispatcher. AdminEmail is the
// operator recipient for submission notifications.
type EmailConfig struct {
	Host       string
	Port       string
	Username   string
	Password   string
	From       string
	AdminEmail string
}

// EmailDispatcher sends submission notifications to the configured
// admin address over SMTP.
type EmailDispatcher struct {
	cfg EmailConfig
}

// NewEmailDispatcher builds an SMTP dispatcher from explicit config.
func NewEmailDispatcher(cfg EmailConfig) *EmailDispatcher {
	return &EmailDispatcher{cfg: cfg}
}

// Send delivers one notification email. Missing SMTP or recipient
// configuration is permanent; transport failures are transient.
func (d *EmailDispatcher) Send(ctx context.Context, n Notification) error {
	if d.cfg.Host == "" || d.cfg.From == "" || d.cfg.AdminEmail == "" {
		return Permanent(errors.New("smtp host, sender and admin recipient must be configured"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	port := d.cfg.Port
	if port == "" {
		port = "25"
	}

	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}

	msg := buildMessage(d.cfg.From, d.cfg.AdminEmail, n)
	if err := smtp.SendMail(d.cfg.Host+":"+port, auth, d.cfg.From, []string{d.cfg.AdminEmail}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from, to string, n Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: New Form Submission: %s\r\n", n.FormName)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")

	fmt.Fprintf(&b, "Form: %s\r\n", n.FormName)
	fmt.Fprintf(&b, "Submitted by: %s\r\n", n.SubmittedBy)
	fmt.Fprintf(&b, "Submitted at: %s\r\n\r\n", n.SubmittedAt.Format(time.RFC1123))

	names := make([]string, 0, len(n.Data))
	for name := range n.Data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\r\n", name, formatValue(n.Data[name]))
	}

	if len(n.Files) > 0 {
		b.WriteString("\r\nAttachments:\r\n")
		for _, f := range n.Files {
			fmt.Fprintf(&b, "- %s (%d bytes)\r\n", f.Filename, f.Size)
		}
	}
	fmt.Fprintf(&b, "\r\nSubmission id: %s\r\n", n.SubmissionID)
	return []byte(b.String())
}

func formatValue(v models.Value) string {
	switch v.Kind {
	case models.FieldNumber:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v.Num), "0"), ".")
	case models.FieldCheckbox:
		return strings.Join(v.List, ", ")
	case models.FieldFile:
		return fmt.Sprintf("%d file(s)", len(v.Files))
	default:
		return v.Str
	}
}
