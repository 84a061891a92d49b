package email

import (
	"context"
	"fmt"
	"time"

	"followmate/internal/auth"
	"followmate/internal/i18n"
)

// CodeMailer renders one-time code emails and hands them to a Transport.
type CodeMailer struct {
	Transport Transport
}

func NewCodeMailer(t Transport) *CodeMailer {
	return &CodeMailer{Transport: t}
}

func (m *CodeMailer) SendCode(ctx context.Context, msg auth.CodeEmail) error {
	minutes := int(msg.ExpiresIn / time.Minute)
	if minutes <= 0 {
		minutes = int(auth.DefaultCodeTTL / time.Minute)
	}

	var content i18n.EmailContent
	switch msg.Kind {
	case auth.CodeVerification:
		content = i18n.VerificationEmail(msg.Locale, msg.Name, msg.Code, minutes)
	case auth.CodeReset:
		content = i18n.PasswordResetEmail(msg.Locale, msg.Name, msg.Code, minutes)
	case auth.CodeChangePassword:
		content = i18n.ChangePasswordEmail(msg.Locale, msg.Name, msg.Code, minutes)
	default:
		return fmt.Errorf("unknown code kind %q", msg.Kind)
	}
	return m.Transport.Send(ctx, msg.To, content.Subject, content.Text, content.HTML)
}
