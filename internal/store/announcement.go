package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/coursemate/internal/model"
)

// CreateAnnouncement stores an announcement and drops a notification into
// the inbox of every student enrolled in its course. link is stored on the
// notifications.
func (s *Store) CreateAnnouncement(ctx context.Context, a model.Announcement, link string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO announcements (course_id, author_id, title, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.CourseID, a.AuthorID, a.Title, a.Content, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert announcement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO notifications (user_id, kind, title, message, link, is_read, created_at)
		 SELECT student_id, ?, ?, ?, ?, 0, ? FROM enrollments WHERE course_id = ?`,
		model.NotificationAnnouncement, a.Title, a.Content, link, now, a.CourseID,
	)
	if err != nil {
		return 0, fmt.Errorf("notify students: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit announcement: %w", err)
	}
	return id, nil
}

// ListAnnouncements returns a course's announcements, newest first.
func (s *Store) ListAnnouncements(ctx context.Context, courseID int64) ([]model.Announcement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, author_id, title, content, created_at
		 FROM announcements WHERE course_id = ? ORDER BY id DESC`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Announcement
	for rows.Next() {
		var a model.Announcement
		if err := rows.Scan(&a.ID, &a.CourseID, &a.AuthorID, &a.Title, &a.Content, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
