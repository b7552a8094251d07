package device

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("device not found")
	ErrForbidden = errors.New("device belongs to another user")
)

// Device is a mobile or browser endpoint registered for push delivery.
type Device struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"userId"`
	DeviceToken string    `json:"deviceToken"`
	Platform    string    `json:"platform"`
	IsDisabled  bool      `json:"isDisabled"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RegisterRequest is the body of POST /devices.
type RegisterRequest struct {
	DeviceToken string `json:"deviceToken" validate:"required,max=4096"`
	Platform    string `json:"platform" validate:"omitempty,oneof=android ios web"`
}
