package mail

import (
	"context"

	"github.com/rs/zerolog"

	"smartqr-backend/internal/domain/ports/adapter"
	"smartqr-backend/internal/infra/metrics"
)

var _ adapter.Mailer = (*LogMailer)(nil)

// LogMailer records mails in the log instead of sending them. Used when no
// SMTP host is configured.
type LogMailer struct {
	logger *zerolog.Logger
}

func NewLogMailer(logger *zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendWelcome(ctx context.Context, to, name string) error {
	return m.log("welcome", to)
}

func (m *LogMailer) ConfirmEventJoin(ctx context.Context, to, name, eventTitle string) error {
	return m.log("event_join", to)
}

func (m *LogMailer) ConfirmMissionProposal(ctx context.Context, to, company, mission string) error {
	return m.log("mission_proposal", to)
}

func (m *LogMailer) log(kind, to string) error {
	metrics.IncMailDelivery(kind, "dropped")
	m.logger.Info().Str("kind", kind).Str("to", to).Msg("mail not sent: smtp disabled")
	return nil
}
