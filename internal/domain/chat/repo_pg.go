package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docease/docease/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// -- Messages --

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

func (r *messageRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const messageCols = `message_id, chat_room_id, sender_id, recipient_id, message,
	is_delivered, is_read, created_at, updated_at`

func (r *messageRepoPG) scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.MessageID, &m.ChatRoomID, &m.SenderID, &m.RecipientID, &m.Message,
		&m.IsDelivered, &m.IsRead, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	m.MessageID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO chats (message_id, chat_room_id, sender_id, recipient_id, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING is_delivered, is_read, created_at, updated_at`,
		m.MessageID, m.ChatRoomID, m.SenderID, m.RecipientID, m.Message,
	).Scan(&m.IsDelivered, &m.IsRead, &m.CreatedAt, &m.UpdatedAt)
}

func (r *messageRepoPG) ListByRoom(ctx context.Context, roomID, participant string, cursor *uuid.UUID, limit int) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+messageCols+` FROM (
			SELECT `+messageCols+` FROM chats
			WHERE chat_room_id = $1
				AND (sender_id = $2 OR recipient_id = $2)
				AND ($3::uuid IS NULL OR (created_at, message_id) <
					(SELECT created_at, message_id FROM chats WHERE message_id = $3))
			ORDER BY created_at DESC, message_id DESC
			LIMIT $4
		) page
		ORDER BY created_at ASC, message_id ASC`,
		roomID, participant, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *messageRepoPG) ListConversation(ctx context.Context, a, b string, limit int) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+messageCols+` FROM (
			SELECT `+messageCols+` FROM chats
			WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC`,
		a, b, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *messageRepoPG) MarkReadUntil(ctx context.Context, recipientID string, until time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE chats SET is_read = TRUE, updated_at = NOW()
		WHERE recipient_id = $1 AND NOT is_read AND created_at <= $2`,
		recipientID, until)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *messageRepoPG) collect(rows pgx.Rows) ([]*Message, error) {
	var items []*Message
	for rows.Next() {
		m, err := r.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// -- Chat mates --

type chatMateRepoPG struct{ pool *pgxpool.Pool }

func NewChatMateRepoPG(pool *pgxpool.Pool) ChatMateRepository {
	return &chatMateRepoPG{pool: pool}
}

func (r *chatMateRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *chatMateRepoPG) Touch(ctx context.Context, a, b string) error {
	lo, hi := orderedPair(a, b)
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO chat_mates (id, sender_id, recipient_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (sender_id, recipient_id) DO UPDATE SET updated_at = NOW()`,
		uuid.New(), lo, hi)
	return err
}

func (r *chatMateRepoPG) ListRecent(ctx context.Context, userID string, limit int) ([]*ChatMate, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, sender_id, recipient_id, created_at, updated_at FROM chat_mates
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY updated_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ChatMate
	for rows.Next() {
		var c ChatMate
		if err := rows.Scan(&c.ID, &c.SenderID, &c.RecipientID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

func orderedPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}
