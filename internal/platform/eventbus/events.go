package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Category partitions events into the independent delivery lanes a
// subscriber can listen on.
type Category string

const (
	CategoryNotification Category = "notification"
	CategoryChat         Category = "chat"
	CategoryConference   Category = "conference"
)

// Event is the closed set of payloads carried by the bus. Every event is
// addressed to exactly one user, returned by Target.
type Event interface {
	Category() Category
	Target() string
}

// Title labels a notification for push and in-app rendering.
type Title string

const (
	TitleAppointment Title = "APPOINTMENT"
	TitleMessage     Title = "MESSAGE"
	TitleConference  Title = "CONFERENCE"
)

// ChatMessage is emitted when a chat row is created. It is routed to the
// recipient's chat stream.
type ChatMessage struct {
	MessageID   uuid.UUID `json:"messageId" validate:"required"`
	SenderID    string    `json:"senderId" validate:"required"`
	RecipientID string    `json:"recipientId" validate:"required"`
	ChatRoomID  string    `json:"chatRoomId" validate:"required"`
	Message     string    `json:"message"`
	IsDelivered bool      `json:"isDelivered"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (ChatMessage) Category() Category { return CategoryChat }
func (m ChatMessage) Target() string   { return m.RecipientID }

// Notification is a user-facing alert. It is persisted, written to the
// user's live notification stream, and pushed to registered devices.
type Notification struct {
	UserID  string `json:"userId" validate:"required"`
	Message string `json:"message" validate:"required"`
	Title   Title  `json:"title" validate:"required,oneof=APPOINTMENT MESSAGE CONFERENCE"`
	Body    string `json:"body"`
	Link    string `json:"link,omitempty"`
}

func (Notification) Category() Category { return CategoryNotification }
func (n Notification) Target() string   { return n.UserID }

// ConferenceInvite asks a user to join a video conference.
type ConferenceInvite struct {
	UserID            string    `json:"userId" validate:"required"`
	Message           string    `json:"message" validate:"required"`
	VideoConferenceID uuid.UUID `json:"videoConferenceId" validate:"required"`
}

func (ConferenceInvite) Category() Category { return CategoryConference }
func (c ConferenceInvite) Target() string   { return c.UserID }
