package conference

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/docease/docease/internal/domain/user"
)

var (
	ErrNotFound  = errors.New("conference not found")
	ErrForbidden = errors.New("Not allowed to join conference")
	ErrInvalid   = errors.New("invalid conference request")
)

// Conference maps to the video_conferences table. Its ID doubles as the
// signaling room id.
type Conference struct {
	ID         uuid.UUID     `json:"videoConferenceId"`
	HostID     string        `json:"hostId"`
	AttendeeID string        `json:"attendeeId"`
	Host       *user.Profile `json:"host,omitempty"`
	Attendee   *user.Profile `json:"attendee,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// IsParticipant reports whether userID is the host or the attendee.
func (c *Conference) IsParticipant(userID string) bool {
	return userID != "" && (userID == c.HostID || userID == c.AttendeeID)
}

// Counterpart returns the participant that is not userID.
func (c *Conference) Counterpart(userID string) string {
	if userID == c.HostID {
		return c.AttendeeID
	}
	return c.HostID
}

// JoinRequest is the body of POST /conferences/join.
type JoinRequest struct {
	VideoConferenceID string `json:"videoConferenceId" validate:"required,uuid"`
}
