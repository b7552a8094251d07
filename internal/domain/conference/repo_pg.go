package conference

import (
	"context"
	"errors"

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

type conferenceRepoPG struct{ pool *pgxpool.Pool }

func NewConferenceRepoPG(pool *pgxpool.Pool) ConferenceRepository {
	return &conferenceRepoPG{pool: pool}
}

func (r *conferenceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const conferenceCols = `id, host_id, attendee_id, created_at, updated_at`

func (r *conferenceRepoPG) scanConference(row pgx.Row) (*Conference, error) {
	var c Conference
	err := row.Scan(&c.ID, &c.HostID, &c.AttendeeID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conferenceRepoPG) Create(ctx context.Context, c *Conference) error {
	c.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO video_conferences (id, host_id, attendee_id)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		c.ID, c.HostID, c.AttendeeID).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *conferenceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Conference, error) {
	return r.scanConference(r.conn(ctx).QueryRow(ctx, `SELECT `+conferenceCols+` FROM video_conferences WHERE id = $1`, id))
}

func (r *conferenceRepoPG) Latest(ctx context.Context, hostID, attendeeID string) (*Conference, error) {
	return r.scanConference(r.conn(ctx).QueryRow(ctx, `
		SELECT `+conferenceCols+` FROM video_conferences
		WHERE host_id = $1 AND attendee_id = $2
		ORDER BY created_at DESC
		LIMIT 1`, hostID, attendeeID))
}
