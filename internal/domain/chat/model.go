package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/docease/docease/internal/platform/eventbus"
)

var (
	ErrInvalid     = errors.New("invalid chat request")
	ErrForbidden   = errors.New("sender does not match caller")
	ErrSelfMessage = errors.New("You can't message your self")
)

const (
	MessagesPageSize    = 20
	RecipientsLimit     = 5
	ConversationPreview = 10
)

// Message maps to the chats table.
type Message struct {
	MessageID   uuid.UUID `json:"messageId"`
	ChatRoomID  string    `json:"chatRoomId"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Message     string    `json:"message"`
	IsDelivered bool      `json:"isDelivered"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Event converts m to the bus payload routed to the recipient.
func (m *Message) Event() eventbus.ChatMessage {
	return eventbus.ChatMessage{
		MessageID:   m.MessageID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		ChatRoomID:  m.ChatRoomID,
		Message:     m.Message,
		IsDelivered: m.IsDelivered,
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ChatMate records that two users have talked. The pair is stored with the
// lexically smaller id first so each pair has one row.
type ChatMate struct {
	ID          uuid.UUID `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Other returns the member of the pair that is not userID.
func (c *ChatMate) Other(userID string) string {
	if c.SenderID == userID {
		return c.RecipientID
	}
	return c.SenderID
}

// Recipient is one entry of the caller's recent conversations.
type Recipient struct {
	UserID    string     `json:"userId"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Role      string     `json:"role"`
	Messages  []*Message `json:"messages"`
}

// PostRequest is the body of POST /chat/post.
type PostRequest struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId" validate:"required"`
	ChatRoomID  string `json:"chatRoomId" validate:"required"`
	Message     string `json:"message" validate:"required,max=5000"`
}

// MarkReadRequest is the body of PATCH /chat/mark-message-as-read.
type MarkReadRequest struct {
	CreatedAt time.Time `json:"createdAt"`
}
