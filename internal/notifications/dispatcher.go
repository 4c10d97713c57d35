package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/logger"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/mail"
)

// Dispatcher sends one templated notification to one address.
type Dispatcher interface {
	Send(ctx context.Context, templateID, to string, vars map[string]string) error
}

// MailDispatcher renders catalogue templates and delivers them through a mail.Mailer.
type MailDispatcher struct {
	mailer    mail.Mailer
	catalogue *Catalogue
	replyTo   string
	log       *zap.Logger
}

// Option customises a MailDispatcher.
type Option func(*MailDispatcher)

// WithReplyTo sets the Reply-To header on outgoing mail.
func WithReplyTo(addr string) Option {
	return func(d *MailDispatcher) {
		d.replyTo = strings.TrimSpace(addr)
	}
}

// WithLogger overrides the dispatcher logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *MailDispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// NewMailDispatcher constructs a MailDispatcher.
func NewMailDispatcher(mailer mail.Mailer, opts ...Option) (*MailDispatcher, error) {
	if mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}
	catalogue, err := NewCatalogue()
	if err != nil {
		return nil, err
	}

	d := &MailDispatcher{
		mailer:    mailer,
		catalogue: catalogue,
		log:       logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Send renders templateID with vars and mails it to the recipient. A disabled
// SMTP transport is not an error.
func (d *MailDispatcher) Send(ctx context.Context, templateID, to string, vars map[string]string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("notifications: recipient is required")
	}

	subject, body, err := d.catalogue.Render(templateID, vars)
	if err != nil {
		return err
	}

	err = d.mailer.Send(ctx, mail.Message{
		To:      []string{to},
		ReplyTo: d.replyTo,
		Subject: subject,
		Body:    body,
	})
	if errors.Is(err, mail.ErrSMTPDisabled) {
		d.log.Debug("smtp disabled, notification skipped", zap.String("template", templateID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("notifications: send %s: %w", templateID, err)
	}
	return nil
}
