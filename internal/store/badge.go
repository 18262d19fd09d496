package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/coursemate/internal/model"
)

// AwardBadge records a badge and reports whether it is new. Awarding a badge
// the student already holds in that course is a no-op.
func (s *Store) AwardBadge(ctx context.Context, b model.Badge) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO student_badges (student_id, course_id, badge, awarded_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(student_id, course_id, badge) DO NOTHING`,
		b.StudentID, b.CourseID, b.Kind, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("insert badge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListBadges returns a student's badges across all courses, newest first.
func (s *Store) ListBadges(ctx context.Context, studentID int64) ([]model.Badge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, course_id, badge, awarded_at
		 FROM student_badges WHERE student_id = ? ORDER BY id DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Badge
	for rows.Next() {
		var b model.Badge
		if err := rows.Scan(&b.ID, &b.StudentID, &b.CourseID, &b.Kind, &b.AwardedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
