package device

import (
	"context"

	"github.com/google/uuid"
)

type DeviceRepository interface {
	// Upsert inserts d or, when the token is already known, moves it to
	// d.UserID and re-enables it.
	Upsert(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id uuid.UUID) (*Device, error)
	SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Device, int, error)
	ListAllByUser(ctx context.Context, userID string) ([]*Device, error)
}
