package audit

import "context"

type Store interface {
	Append(ctx context.Context, event Event) error
	ListByParticipant(ctx context.Context, participantID string) ([]Event, error)
}
