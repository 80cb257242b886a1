package notification

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender mails the session length to a fixed recipient.
type EmailSender struct {
	addr     string
	auth     smtp.Auth
	from     string
	to       string
	sendMail SendMailFunc
}

// NewEmailSender creates a sender for the SMTP relay at host:port. auth is
// only used when username is set.
func NewEmailSender(host string, port int, username, password, from, to string) *EmailSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &EmailSender{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		auth:     auth,
		from:     from,
		to:       to,
		sendMail: smtp.SendMail,
	}
}

// Name implements Channel.
func (s *EmailSender) Name() string {
	return "email"
}

// Send implements Channel.
func (s *EmailSender) Send(_ context.Context, n Notice) error {
	if err := s.sendMail(s.addr, s.auth, s.from, []string{s.to}, s.message(n)); err != nil {
		return fmt.Errorf("failed to send mail for spot %d: %w", n.SpotID, err)
	}
	return nil
}

// EmailSubject is the subject line of the end-of-session mail.
func EmailSubject(n Notice) string {
	return fmt.Sprintf("Tempo de permanência - Vaga %d", n.SpotID)
}

// EmailBody is the text of the end-of-session mail.
func EmailBody(n Notice) string {
	return fmt.Sprintf("O veículo ficou %d minutos estacionado na vaga %d.", n.Minutes(), n.SpotID)
}

func (s *EmailSender) message(n Notice) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", s.to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", EmailSubject(n)))
	fmt.Fprintf(&b, "Date: %s\r\n", n.EndedAt.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(EmailBody(n))
	b.WriteString("\r\n")
	return b.Bytes()
}
