package events

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	mail "github.com/go-mail/mail"
)

// Sender envía mensajes. *mail.Dialer lo implementa.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPConfig configura el dialer de MailSink.
type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// NewDialer arma un *mail.Dialer a partir de la config.
func NewDialer(cfg SMTPConfig) *mail.Dialer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify, // solo dev
	}
	switch cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}
	return d
}

// MailSink avisa por mail a los administradores.
type MailSink struct {
	Sender  Sender
	From    string
	To      []string
	Subject string
}

func (s MailSink) LoginFailed(ctx context.Context, ev LoginFailed) error {
	if s.Sender == nil || len(s.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := s.Subject
	if subject == "" {
		subject = "classlink: login rejected for " + ev.Username
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", mailBody(ev))

	if err := s.Sender.DialAndSend(m); err != nil {
		return fmt.Errorf("events: smtp send: %w", err)
	}
	return nil
}

func mailBody(ev LoginFailed) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A user authenticated at the identity provider but no local account exists and account creation is disabled.\n\n")
	fmt.Fprintf(&b, "Username:    %s\n", ev.Username)
	fmt.Fprintf(&b, "Reason:      %s\n", ev.Reason)
	fmt.Fprintf(&b, "Remote addr: %s\n", ev.RemoteAddr)
	fmt.Fprintf(&b, "User agent:  %s\n", ev.UserAgent)
	if ev.SiteURL != "" {
		fmt.Fprintf(&b, "Site:        %s\n", ev.SiteURL)
	}
	if !ev.Time.IsZero() {
		fmt.Fprintf(&b, "Time:        %s\n", ev.Time.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	return b.String()
}
