package inbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("notification not found")
	ErrForbidden = errors.New("notification belongs to another user")
	ErrInvalid   = errors.New("invalid notification")
)

// Notification is one persisted inbox record. Records are append-only.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	Title     string    `json:"title"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmitRequest is the body of POST /notifications/emit. Either Template or
// Title and Message must be set.
type EmitRequest struct {
	UserID   string            `json:"userId" validate:"required"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
	Title    string            `json:"title" validate:"omitempty,oneof=APPOINTMENT MESSAGE CONFERENCE"`
	Message  string            `json:"message"`
	Body     string            `json:"body"`
	Link     string            `json:"link" validate:"omitempty,max=2048"`
}
