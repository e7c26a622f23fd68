package repository

import (
	"context"
	"fmt"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
)

// CreateNotification сохраняет уведомление администратора.
func (r *PostgresRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (type, title, message, related_id, related_type, priority)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		n.Type, n.Title, n.Message, n.RelatedID, n.RelatedType, n.Priority,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications возвращает страницу уведомлений, новые первыми, вместе
// с общим числом и числом непрочитанных.
func (r *PostgresRepository) ListNotifications(ctx context.Context, unreadOnly bool, skip, take int) ([]model.Notification, int64, int64, error) {
	query := `SELECT id, type, title, message, related_id, related_type, priority, is_read, created_at
	          FROM notifications`
	if unreadOnly {
		query += ` WHERE NOT is_read`
	}
	query += ` ORDER BY created_at DESC OFFSET $1 LIMIT $2`

	rows, err := r.pool.Query(ctx, query, skip, take)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.RelatedID,
			&n.RelatedType, &n.Priority, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, 0, 0, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, fmt.Errorf("rows error: %w", err)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM notifications`
	if unreadOnly {
		countQuery += ` WHERE NOT is_read`
	}
	if err := r.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, 0, fmt.Errorf("count notifications: %w", err)
	}

	var unread int64
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE NOT is_read`).Scan(&unread)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("count unread notifications: %w", err)
	}

	return res, total, unread, nil
}

// MarkNotificationRead помечает уведомление прочитанным.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllNotificationsRead помечает все уведомления прочитанными.
func (r *PostgresRepository) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE NOT is_read`)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// DeleteNotification удаляет уведомление.
func (r *PostgresRepository) DeleteNotification(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
