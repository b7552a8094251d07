package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	// ListByRoom returns up to limit messages of roomID visible to
	// participant, oldest first. With a cursor, only messages older than
	// the cursor message are returned.
	ListByRoom(ctx context.Context, roomID, participant string, cursor *uuid.UUID, limit int) ([]*Message, error)
	// ListConversation returns the last limit messages between a and b,
	// oldest first.
	ListConversation(ctx context.Context, a, b string, limit int) ([]*Message, error)
	MarkReadUntil(ctx context.Context, recipientID string, until time.Time) (int64, error)
}

type ChatMateRepository interface {
	Touch(ctx context.Context, a, b string) error
	ListRecent(ctx context.Context, userID string, limit int) ([]*ChatMate, error)
}
