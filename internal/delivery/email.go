package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultEmailSubject = "Job Matches"
	DefaultSMTPPort     = 587

	base64LineLength = 76
)

// EmailOptions describes the SMTP server and the message envelope.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	// Subject is suffixed with the number of matches.
	Subject string
	// AttachCSV adds the postings as a CSV attachment.
	AttachCSV bool
}

// Email sends the report as a plain text summary, optionally with the postings
// attached as CSV.
type Email struct {
	opts   EmailOptions
	logger *zap.Logger
	// send matches smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

var _ Deliverer = (*Email)(nil)

func NewEmail(opts EmailOptions, logger *zap.Logger) (*Email, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts.Host = strings.TrimSpace(opts.Host)
	if opts.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if opts.Port == 0 {
		opts.Port = DefaultSMTPPort
	}

	to := make([]string, 0, len(opts.To))
	for _, addr := range opts.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return nil, errors.New("at least one email recipient is required")
	}
	opts.To = to

	if opts.From == "" {
		opts.From = opts.Username
	}
	if opts.From == "" {
		return nil, errors.New("email sender is required")
	}
	if strings.TrimSpace(opts.Subject) == "" {
		opts.Subject = DefaultEmailSubject
	}

	return &Email{
		opts:   opts,
		logger: logger,
		send:   smtp.SendMail,
		now:    time.Now,
	}, nil
}

func (e *Email) Name() string {
	return "email"
}

// Deliver sends one message per report. Empty reports are not mailed.
func (e *Email) Deliver(ctx context.Context, r Report) error {
	if r.Len() == 0 {
		e.logger.Info("no matching postings, email not sent")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := e.message(r)
	if err != nil {
		return fmt.Errorf("composing email: %w", err)
	}

	var auth smtp.Auth
	if e.opts.Username != "" {
		auth = smtp.PlainAuth("", e.opts.Username, e.opts.Password, e.opts.Host)
	}

	addr := net.JoinHostPort(e.opts.Host, strconv.Itoa(e.opts.Port))
	if err := e.send(addr, auth, e.opts.From, e.opts.To, msg); err != nil {
		return fmt.Errorf("sending email via %s: %w", addr, err)
	}

	e.logger.Info("email sent",
		zap.Strings("to", e.opts.To),
		zap.Int("count", r.Len()),
		zap.Bool("attachment", e.opts.AttachCSV),
	)
	return nil
}

func (e *Email) message(r Report) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	at := r.GeneratedAt
	if at.IsZero() {
		at = e.now()
	}

	subject := fmt.Sprintf("%s - %d Matches", e.opts.Subject, r.Len())

	header := []string{
		"From: " + e.opts.From,
		"To: " + strings.Join(e.opts.To, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"Date: " + at.Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=" + mw.Boundary(),
	}
	var out bytes.Buffer
	out.WriteString(strings.Join(header, "\r\n"))
	out.WriteString("\r\n\r\n")

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(encodeBase64Lines([]byte(EmailBody(r)))); err != nil {
		return nil, err
	}

	if e.opts.AttachCSV {
		var csvBuf bytes.Buffer
		if err := WriteCSV(&csvBuf, r.Postings); err != nil {
			return nil, err
		}

		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"text/csv; charset=utf-8"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": fileName("jobs", r, "csv")})},
		})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(encodeBase64Lines(csvBuf.Bytes())); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}

	out.Write(buf.Bytes())
	return out.Bytes(), nil
}

// EmailBody lists the postings one block each: title, company, match score,
// matched skills and apply URL.
func EmailBody(r Report) string {
	var b strings.Builder
	for _, p := range r.Postings {
		fmt.Fprintf(&b, "Title: %s\n", p.Title)
		fmt.Fprintf(&b, "Company: %s\n", p.Company)
		fmt.Fprintf(&b, "Match Score: %s%%\n", formatScore(p.Match))
		if len(p.MatchedSkills) > 0 {
			fmt.Fprintf(&b, "Matched Skills: %s\n", strings.Join(p.MatchedSkills, ", "))
		}
		fmt.Fprintf(&b, "URL: %s\n\n", p.ApplyURL)
	}
	return b.String()
}

func encodeBase64Lines(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)

	var out bytes.Buffer
	for len(encoded) > base64LineLength {
		out.WriteString(encoded[:base64LineLength])
		out.WriteString("\r\n")
		encoded = encoded[base64LineLength:]
	}
	out.WriteString(encoded)
	out.WriteString("\r\n")
	return out.Bytes()
}
