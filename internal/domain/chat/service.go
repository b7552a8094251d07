package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/docease/docease/internal/domain/user"
	"github.com/docease/docease/internal/platform/db"
	"github.com/docease/docease/internal/platform/eventbus"
	"github.com/docease/docease/internal/platform/notification"
)

var validate = validator.New()

// UserDirectory resolves account profiles for display names.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*user.Profile, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]*user.Profile, error)
}

type Service struct {
	messages  MessageRepository
	mates     ChatMateRepository
	users     UserDirectory
	tx        db.TxRunner
	templates *notification.TemplateEngine
	bus       eventbus.Publisher
	logger    zerolog.Logger
}

func NewService(
	messages MessageRepository,
	mates ChatMateRepository,
	users UserDirectory,
	tx db.TxRunner,
	templates *notification.TemplateEngine,
	bus eventbus.Publisher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		messages:  messages,
		mates:     mates,
		users:     users,
		tx:        tx,
		templates: templates,
		bus:       bus,
		logger:    logger.With().Str("component", "chat").Logger(),
	}
}

// PostMessage stores a message from callerID, records the chat mate pair,
// and then publishes the message to the recipient's chat stream together
// with a MESSAGE notification.
func (s *Service) PostMessage(ctx context.Context, callerID string, req PostRequest) (*Message, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.SenderID == "" {
		req.SenderID = callerID
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if req.SenderID != callerID {
		return nil, ErrForbidden
	}
	if req.SenderID == req.RecipientID {
		return nil, ErrSelfMessage
	}

	m := &Message{
		ChatRoomID:  req.ChatRoomID,
		SenderID:    req.SenderID,
		RecipientID: req.RecipientID,
		Message:     req.Message,
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.messages.Create(ctx, m); err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if err := s.mates.Touch(ctx, m.SenderID, m.RecipientID); err != nil {
			return fmt.Errorf("record chat mate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.bus.Publish(m.Event()); err != nil {
		s.logger.Warn().Err(err).Str("user_id", m.RecipientID).Msg("publish chat message")
	}

	n, err := s.templates.Notification(notification.TemplateChatMessage, m.RecipientID,
		"/messages?id="+m.MessageID.String(),
		map[string]string{"sender_name": s.displayName(ctx, m.SenderID)})
	if err == nil {
		err = s.bus.Publish(n)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", m.RecipientID).Msg("publish chat notification")
	}
	return m, nil
}

// ListMessages returns one page of a chat room, oldest first. cursorID, when
// set, is the oldest message the client already holds.
func (s *Service) ListMessages(ctx context.Context, callerID, roomID, cursorID string) ([]*Message, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, fmt.Errorf("%w: Please provide chatRoomId", ErrInvalid)
	}
	var cursor *uuid.UUID
	if cursorID != "" {
		id, err := uuid.Parse(cursorID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid cursorId", ErrInvalid)
		}
		cursor = &id
	}
	return s.messages.ListByRoom(ctx, roomID, callerID, cursor, MessagesPageSize)
}

// Recipients returns the caller's most recent chat mates with the tail of
// each conversation.
func (s *Service) Recipients(ctx context.Context, callerID string) ([]*Recipient, error) {
	mates, err := s.mates.ListRecent(ctx, callerID, RecipientsLimit)
	if err != nil {
		return nil, fmt.Errorf("list chat mates: %w", err)
	}
	others := lo.Map(mates, func(c *ChatMate, _ int) string { return c.Other(callerID) })
	profiles, err := s.users.ListByIDs(ctx, others)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	out := make([]*Recipient, 0, len(others))
	for _, other := range others {
		msgs, err := s.messages.ListConversation(ctx, callerID, other, ConversationPreview)
		if err != nil {
			return nil, fmt.Errorf("load conversation: %w", err)
		}
		if msgs == nil {
			msgs = []*Message{}
		}
		r := &Recipient{UserID: other, Messages: msgs}
		if p, ok := profiles[other]; ok {
			r.FirstName, r.LastName, r.Role = p.FirstName, p.LastName, p.Role
		}
		out = append(out, r)
	}
	return out, nil
}

// MarkRead marks every unread message received by callerID up to until.
func (s *Service) MarkRead(ctx context.Context, callerID string, req MarkReadRequest) (int64, error) {
	if req.CreatedAt.IsZero() {
		return 0, fmt.Errorf("%w: Please provide message createdAt date", ErrInvalid)
	}
	return s.messages.MarkReadUntil(ctx, callerID, req.CreatedAt.UTC())
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	p, err := s.users.GetByID(ctx, userID)
	if err != nil {
		p = &user.Profile{ID: userID}
	}
	return p.DisplayName()
}
