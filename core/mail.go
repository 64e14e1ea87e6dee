package core

import (
	"fmt"
	"html"
	"net/mail"
	"strings"
)

type (
	EmailMessage struct {
		To      []mail.Address
		ReplyTo *mail.Address
		Subject string
		BodyStr string // simple text/plain content

		TextContent string
		HTMLContent string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills the text and html contents from BodyStr.
func (m *EmailMessage) Render() error {
	if m.BodyStr == "" {
		return fmt.Errorf("email %q has no content", m.Subject)
	}
	m.TextContent = m.BodyStr
	var body strings.Builder
	for _, line := range strings.Split(m.BodyStr, "\n") {
		body.WriteString("<p>" + html.EscapeString(line) + "</p>")
	}
	m.HTMLContent = body.String()
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
