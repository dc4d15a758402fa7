package repository

import (
	"context"
	"database/sql"

	"business-inventory/internal/models"
)

type NotificationRepository struct {
	db *sql.DB
}

// List returns the newest limit notifications.
func (r *NotificationRepository) List(ctx context.Context, limit int) ([]models.NotificationRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, title, message, link, business_id, product_id, read, created_at
		FROM notifications
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NotificationRow
	for rows.Next() {
		var n models.NotificationRow
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.Link,
			&n.BusinessID, &n.ProductID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = true WHERE id = $1`, id)
	return err
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = true WHERE read = false`)
	return err
}

func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	return err
}

func (r *NotificationRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notifications`)
	return err
}
