package clickhouse

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/jpanzo/debt-tracker/internal/model"
)

// NotificationsRepo is the delivery log kept in ClickHouse. The notifier
// worker appends; the reports endpoint reads.
type NotificationsRepo interface {
	InsertDeliveries(ctx context.Context, recs []model.NotificationRecord) error
	List(ctx context.Context, accountID string, status model.DeliveryStatus, limit, offset int) ([]model.NotificationRecord, error)
}

type notificationsRepo struct {
	ch *sqlx.DB
}

func NewNotificationsRepo(ch *sqlx.DB) NotificationsRepo {
	return &notificationsRepo{ch: ch}
}

func (r *notificationsRepo) InsertDeliveries(ctx context.Context, recs []model.NotificationRecord) error {
	if len(recs) == 0 {
		return nil
	}

	const q = `
		INSERT INTO debt.notification_log
			(id, account_id, band, ` + "`to`" + `, subject, status, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, rec := range recs {
		if _, err := r.ch.ExecContext(ctx, q,
			rec.ID, rec.AccountID, rec.Band, rec.To, rec.Subject,
			rec.Status.String(), rec.Provider, rec.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *notificationsRepo) List(ctx context.Context, accountID string, status model.DeliveryStatus, limit, offset int) ([]model.NotificationRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, account_id, band, ` + "`to`" + `, subject, status, provider, created_at
		FROM debt.notification_log
		WHERE 1 = 1
	`
	var args []any

	if accountID != "" {
		q += " AND account_id = ?"
		args = append(args, accountID)
	}
	if status != "" {
		q += " AND status = ?"
		args = append(args, status.String())
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.NotificationRecord
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
