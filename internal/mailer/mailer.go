package mailer

import (
	"context"

	"github.com/AdityaGahukar/PingWave/pkg/log"
)

// Mailer sends transactional email. Delivery is a pass-through
// integration; the service only ever calls it best-effort.
type Mailer interface {
	SendWelcome(ctx context.Context, to, fullName string) error
}

// LogMailer is the default Mailer: it records the email instead of
// sending it. Deployments wire a real provider behind the same
// interface.
type LogMailer struct{}

// NewLogMailer creates a LogMailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) SendWelcome(ctx context.Context, to, fullName string) error {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldEmail, to).
		Str("template", "welcome").
		Msg("email send skipped (log mailer)")
	return nil
}
