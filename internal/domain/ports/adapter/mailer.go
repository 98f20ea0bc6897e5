package adapter

import "context"

// Mailer sends transactional mail. Callers treat delivery as best-effort.
type Mailer interface {
	SendWelcome(ctx context.Context, to, name string) error
	ConfirmEventJoin(ctx context.Context, to, name, eventTitle string) error
	ConfirmMissionProposal(ctx context.Context, to, company, mission string) error
}
