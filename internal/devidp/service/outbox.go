package service

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// Message is an email the provider would send.
type Message struct {
	To      string
	Purpose string // domain.PurposeVerifyEmail or domain.PurposePasswordReset
	Token   string
}

// Outbox delivers account emails.
type Outbox interface {
	Send(ctx context.Context, m Message) error
}

// LogOutbox writes messages to the log instead of sending them. It is the
// only delivery the development provider has.
type LogOutbox struct {
	Logger *slog.Logger
}

func (o LogOutbox) Send(ctx context.Context, m Message) error {
	slogx.OrDefault(o.Logger).InfoContext(ctx, "outbox",
		"to", m.To,
		"purpose", m.Purpose,
		"sptoken", m.Token,
	)
	return nil
}
