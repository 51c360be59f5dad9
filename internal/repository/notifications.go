package repository

import (
	"context"
	"fmt"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
)

// CreateNotification stores a delivered push message for later retrieval.
func (r *PostgresRepository) CreateNotification(ctx context.Context, userID int64, title, message string) (*model.Notification, error) {
	var n model.Notification
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, title, message, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, title, message, status, created_at`,
		userID, title, message, string(model.NotificationUnread),
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Status, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return &n, nil
}

// GetNotificationsByUser lists a user's notifications, newest first.
func (r *PostgresRepository) GetNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, message, status, created_at
		 FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Status, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return notifications, nil
}

// DeleteNotification removes a notification by id.
func (r *PostgresRepository) DeleteNotification(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// DeleteNotificationsByUser removes all of a user's notifications.
func (r *PostgresRepository) DeleteNotificationsByUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return nil
}

// MarkNotificationRead flags one notification as read.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET status = $2 WHERE id = $1`,
		id, string(model.NotificationRead))
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllNotificationsRead flags every notification of a user as read.
func (r *PostgresRepository) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET status = $2 WHERE user_id = $1`,
		userID, string(model.NotificationRead))
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}
