package core

import (
	"net/mail"
	"strings"
)

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain content

		TextContent string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills the message contents; signature is appended when not empty.
func (m *EmailMessage) Render(signature ...string) {
	if m.BodyStr == "" {
		return
	}
	var b strings.Builder
	b.WriteString(m.BodyStr)
	if len(signature) > 0 && signature[0] != "" {
		b.WriteString("\r\n\r\n-- \r\n")
		b.WriteString(signature[0])
	}
	m.TextContent = b.String()
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" }
