// Package notify sends run reports by email and Slack.
//
// Delivery is best effort: every failure is logged and reported back to the
// caller, but a failed report never fails the run that produced it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/BR4Y4NEXE/Datrix/internal/config"
)

const (
	emailSubject = "ETL Report"
	slackTitle   = "📊 ETL Job Report"
)

// Summary is the run outcome included in a report.
type Summary struct {
	Status        string
	FileName      string
	Duration      time.Duration
	TotalRead     int
	TotalValid    int
	TotalRejected int
	Inserts       int
	Updates       int
}

// Status reports which channels are enabled and configured.
type Status struct {
	EmailEnabled    bool `json:"email_enabled"`
	SlackEnabled    bool `json:"slack_enabled"`
	SMTPConfigured  bool `json:"smtp_configured"`
	SlackConfigured bool `json:"slack_configured"`
}

// SendMailFunc matches smtp.SendMail. SendMail upgrades the connection with
// STARTTLS when the server offers it.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Notifier delivers run reports.
type Notifier struct {
	cfg      config.NotifyConfig
	client   *http.Client
	sendMail SendMailFunc
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient sets the client used for Slack webhooks.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// WithSendMail replaces smtp.SendMail.
func WithSendMail(fn SendMailFunc) Option {
	return func(n *Notifier) { n.sendMail = fn }
}

// New creates a Notifier from the notification settings.
func New(cfg config.NotifyConfig, opts ...Option) *Notifier {
	n := &Notifier{
		cfg:      cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		sendMail: smtp.SendMail,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Status returns the channel configuration, without secrets.
func (n *Notifier) Status() Status {
	return Status{
		EmailEnabled:    n.cfg.Enabled && n.cfg.EmailConfigured(),
		SlackEnabled:    n.cfg.Enabled && n.cfg.SlackConfigured(),
		SMTPConfigured:  n.cfg.EmailConfigured(),
		SlackConfigured: n.cfg.SlackConfigured(),
	}
}

// SendReport delivers s on every configured channel. Channel failures are
// logged and joined into the returned error; callers treat it as a warning.
func (n *Notifier) SendReport(ctx context.Context, s Summary) error {
	if !n.cfg.Enabled {
		slog.Info("notifications disabled")
		return nil
	}

	var errs []error

	if n.cfg.EmailConfigured() {
		if err := n.sendEmail(s); err != nil {
			slog.Error("failed to send email", "error", err)
			errs = append(errs, err)
		} else {
			slog.Info("email sent", "recipient", n.cfg.Recipient())
		}
	}

	if n.cfg.SlackConfigured() {
		if err := n.sendSlack(ctx, s); err != nil {
			slog.Error("failed to send slack notification", "error", err)
			errs = append(errs, err)
		} else {
			slog.Info("slack notification sent")
		}
	}

	return errors.Join(errs...)
}

// FormatReport renders the plain-text report body.
func FormatReport(s Summary) string {
	var b strings.Builder
	b.WriteString("ETL Execution Report\n")
	b.WriteString("--------------------\n")
	fmt.Fprintf(&b, "Status: %s\n", s.Status)
	fmt.Fprintf(&b, "Time: %ss\n\n", seconds(s.Duration))
	fmt.Fprintf(&b, "Files Processed: %s\n", s.FileName)
	fmt.Fprintf(&b, "Rows Read: %d\n\n", s.TotalRead)
	fmt.Fprintf(&b, "Valid: %d\n", s.TotalValid)
	fmt.Fprintf(&b, "Rejected: %d\n\n", s.TotalRejected)
	fmt.Fprintf(&b, "DB Inserts: %d\n", s.Inserts)
	fmt.Fprintf(&b, "DB Updates: %d\n", s.Updates)
	return b.String()
}

func (n *Notifier) sendEmail(s Summary) error {
	from := n.cfg.SMTPUser
	to := n.cfg.Recipient()

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", emailSubject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(strings.ReplaceAll(FormatReport(s), "\n", "\r\n"))

	addr := net.JoinHostPort(n.cfg.SMTPServer, strconv.Itoa(n.cfg.SMTPPort))
	auth := smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPassword, n.cfg.SMTPServer)

	if err := n.sendMail(addr, auth, from, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("send email via %s: %w", addr, err)
	}
	return nil
}

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

// slackBlocks builds the Block Kit payload for s.
func slackBlocks(s Summary) []slackBlock {
	field := func(label, value string) slackText {
		return slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%s", label, value)}
	}

	return []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: slackTitle, Emoji: true}},
		{Type: "section", Fields: []slackText{
			field("Status", s.Status),
			field("Duration", seconds(s.Duration)+"s"),
		}},
		{Type: "section", Fields: []slackText{
			field("Read", strconv.Itoa(s.TotalRead)),
			field("Valid", strconv.Itoa(s.TotalValid)),
			field("Rejected", strconv.Itoa(s.TotalRejected)),
		}},
		{Type: "divider"},
	}
}

func (n *Notifier) sendSlack(ctx context.Context, s Summary) error {
	body, err := json.Marshal(map[string]any{"blocks": slackBlocks(s)})
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.SlackWebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack api error: %d %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 2, 64)
}
