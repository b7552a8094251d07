package conference

import (
	"context"

	"github.com/google/uuid"
)

type ConferenceRepository interface {
	Create(ctx context.Context, c *Conference) error
	GetByID(ctx context.Context, id uuid.UUID) (*Conference, error)
	// Latest returns the newest conference hosted by hostID with
	// attendeeID, or ErrNotFound.
	Latest(ctx context.Context, hostID, attendeeID string) (*Conference, error)
}
