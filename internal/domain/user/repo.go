package user

import (
	"context"
)

type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*Profile, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]*Profile, error)
}
