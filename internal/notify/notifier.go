// Package notify delivers confirmation and restoration codes to users.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
)

// Notifier sends out-of-band messages carrying one-time codes.
type Notifier interface {
	SendEmailConfirmation(ctx context.Context, email string, lang entity.Language, code string) error
	SendPhoneConfirmation(ctx context.Context, phone, code string) error
	SendPasswordReset(ctx context.Context, email string, lang entity.Language, code string) error
}

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	logger *zap.SugaredLogger
}

func NewLogNotifier(logger *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendEmailConfirmation(_ context.Context, email string, lang entity.Language, code string) error {
	n.logger.Infow("notify.email-confirmation", "email", email, "language", lang, "code", code)
	return nil
}

func (n *LogNotifier) SendPhoneConfirmation(_ context.Context, phone, code string) error {
	n.logger.Infow("notify.phone-confirmation", "phone", phone, "code", code)
	return nil
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, email string, lang entity.Language, code string) error {
	n.logger.Infow("notify.password-reset", "email", email, "language", lang, "code", code)
	return nil
}

// Discard drops every message.
type Discard struct{}

func (Discard) SendEmailConfirmation(context.Context, string, entity.Language, string) error {
	return nil
}

func (Discard) SendPhoneConfirmation(context.Context, string, string) error { return nil }

func (Discard) SendPasswordReset(context.Context, string, entity.Language, string) error {
	return nil
}
