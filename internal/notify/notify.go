package notify

import (
	"context"
	"net/url"

	"go.uber.org/zap"
)

// Context carries the template data for an outgoing message.
type Context struct {
	FirstName string
	TenantID  string
}

// Sender delivers account emails. Delivery mechanics live outside the auth core.
type Sender interface {
	SendVerificationEmail(ctx context.Context, to, token string, data Context) error
	SendPasswordResetEmail(ctx context.Context, to, token string, data Context) error
}

// LogSender writes the links it would have emailed to the log.
type LogSender struct {
	log     *zap.SugaredLogger
	baseURL string
}

// NewLogSender creates a sender that builds links against baseURL.
func NewLogSender(log *zap.SugaredLogger, baseURL string) *LogSender {
	return &LogSender{log: log, baseURL: baseURL}
}

func (s *LogSender) SendVerificationEmail(_ context.Context, to, token string, data Context) error {
	s.log.Infow("verification email", "to", to, "tenantId", data.TenantID, "link", s.link("/verify-email", token))
	return nil
}

func (s *LogSender) SendPasswordResetEmail(_ context.Context, to, token string, data Context) error {
	s.log.Infow("password reset email", "to", to, "tenantId", data.TenantID, "link", s.link("/reset-password", token))
	return nil
}

func (s *LogSender) link(path, token string) string {
	return s.baseURL + path + "?token=" + url.QueryEscape(token)
}
