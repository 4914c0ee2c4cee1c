package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/roomops/vcwatch/internal/alert"
	"github.com/roomops/vcwatch/internal/domain"
)

// Email notifies admins over plain SMTP.
type Email struct {
	Addr string // host:port
	From string
	To   []string

	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr, from string, to []string, msg []byte) error
}

func NewEmail(addr, from string, to []string) *Email {
	if addr == "" || len(to) == 0 {
		return nil
	}
	return &Email{
		Addr: addr,
		From: from,
		To:   to,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, ev alert.Event) error {
	msg := buildMessage(e.From, e.To, ev)
	done := make(chan error, 1)
	go func() { done <- e.send(e.Addr, e.From, e.To, msg) }()

	// net/smtp has no context support; bound it ourselves.
	select {
	case err := <-done:
		if err != nil {
			return &domain.DispatchError{Kind: domain.DispatchChannelUnavailable, Channel: e.Name(), Err: err}
		}
		return nil
	case <-ctx.Done():
		return &domain.DispatchError{Kind: domain.DispatchChannelUnavailable, Channel: e.Name(), Err: ctx.Err()}
	}
}

func buildMessage(from string, to []string, ev alert.Event) []byte {
	subject := fmt.Sprintf("[vcwatch] %s - %s", subjectVerb(ev.Type), ev.Room.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n\r\n", subject)

	fmt.Fprintf(&b, "Room: %s\n", ev.Room.Name)
	if ev.Room.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", ev.Room.Location)
	}
	fmt.Fprintf(&b, "Severity: %s\n", strings.ToUpper(string(ev.Alert.Severity)))
	fmt.Fprintf(&b, "Opened: %s\n", ev.Alert.OpenedAt.Format(time.RFC3339))
	if ev.Alert.ResolvedAt != nil {
		fmt.Fprintf(&b, "Resolved: %s\n", ev.Alert.ResolvedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "\n%s\n", ev.Alert.Cause)
	b.WriteString("\nThis is an automated notification from the room monitoring system.\n")
	return []byte(b.String())
}

func subjectVerb(t alert.EventType) string {
	switch t {
	case alert.EventEscalated:
		return "Alert escalated"
	case alert.EventResolved:
		return "Alert resolved"
	}
	return "Alert opened"
}
