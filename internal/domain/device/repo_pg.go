package device

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

type deviceRepoPG struct{ pool *pgxpool.Pool }

func NewDeviceRepoPG(pool *pgxpool.Pool) DeviceRepository {
	return &deviceRepoPG{pool: pool}
}

func (r *deviceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const deviceCols = `id, user_id, device_token, platform, is_disabled, created_at, updated_at`

func (r *deviceRepoPG) scanDevice(row pgx.Row) (*Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.UserID, &d.DeviceToken, &d.Platform, &d.IsDisabled, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deviceRepoPG) Upsert(ctx context.Context, d *Device) error {
	d.ID = uuid.New()
	got, err := r.scanDevice(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO devices (id, user_id, device_token, platform, is_disabled)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (device_token) DO UPDATE
			SET user_id = EXCLUDED.user_id,
				platform = EXCLUDED.platform,
				is_disabled = FALSE,
				updated_at = NOW()
		RETURNING `+deviceCols,
		d.ID, d.UserID, d.DeviceToken, d.Platform))
	if err != nil {
		return err
	}
	*d = *got
	return nil
}

func (r *deviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Device, error) {
	return r.scanDevice(r.conn(ctx).QueryRow(ctx, `SELECT `+deviceCols+` FROM devices WHERE id = $1`, id))
}

func (r *deviceRepoPG) SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE devices SET is_disabled = $2, updated_at = NOW() WHERE id = $1`, id, disabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *deviceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *deviceRepoPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Device, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM devices WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+deviceCols+` FROM devices WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *deviceRepoPG) ListAllByUser(ctx context.Context, userID string) ([]*Device, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+deviceCols+` FROM devices WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *deviceRepoPG) collect(rows pgx.Rows) ([]*Device, error) {
	var items []*Device
	for rows.Next() {
		d, err := r.scanDevice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
