package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/coursemate/internal/model"
)

// CreateNotification puts a notification into a user's inbox.
func (s *Store) CreateNotification(ctx context.Context, n model.Notification) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, kind, title, message, link, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		n.UserID, n.Kind, n.Title, n.Message, n.Link, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return res.LastInsertId()
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]model.Notification, error) {
	query := `SELECT id, user_id, kind, title, message, link, is_read, created_at
		FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead marks one of a user's notifications read. Another
// user's notification is reported as not found.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res, "notification", id)
}

// MarkAllNotificationsRead marks every notification of a user read and
// returns how many changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
