package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/coursemate/internal/model"
)

// AddChatMessage stores an answered course question.
func (s *Store) AddChatMessage(ctx context.Context, m model.ChatMessage) (int64, error) {
	if m.References == nil {
		m.References = []model.Reference{}
	}
	refs, err := encodeJSON(m.References)
	if err != nil {
		return 0, fmt.Errorf("encode references: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO course_chats (course_id, student_id, question, answer, material_references, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.CourseID, m.StudentID, m.Question, m.Answer, refs, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert chat message: %w", err)
	}
	return res.LastInsertId()
}

// ListChatMessages returns a student's chat history for a course, oldest first.
func (s *Store) ListChatMessages(ctx context.Context, courseID, studentID int64) ([]model.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, student_id, question, answer, material_references, created_at
		 FROM course_chats WHERE course_id = ? AND student_id = ? ORDER BY id`, courseID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var refs string
		if err := rows.Scan(&m.ID, &m.CourseID, &m.StudentID, &m.Question, &m.Answer, &refs, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(refs), &m.References); err != nil {
			return nil, fmt.Errorf("decode references of chat message %d: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClearChat deletes a student's chat history for a course.
func (s *Store) ClearChat(ctx context.Context, courseID, studentID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM course_chats WHERE course_id = ? AND student_id = ?`, courseID, studentID)
	return err
}

// AwardPoints appends an entry to the points ledger.
func (s *Store) AwardPoints(ctx context.Context, p model.PointAward) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO point_awards (student_id, course_id, category, points, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.StudentID, p.CourseID, p.Category, p.Points, p.Reason, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert point award: %w", err)
	}
	return nil
}

// PointsSummary totals a student's points across all courses.
func (s *Store) PointsSummary(ctx context.Context, studentID int64) (*model.PointsSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, SUM(points) FROM point_awards WHERE student_id = ? GROUP BY category`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sum := &model.PointsSummary{StudentID: studentID, ByCategory: map[model.PointCategory]int{}}
	for rows.Next() {
		var cat model.PointCategory
		var pts int
		if err := rows.Scan(&cat, &pts); err != nil {
			return nil, err
		}
		sum.ByCategory[cat] = pts
		sum.Total += pts
	}
	return sum, rows.Err()
}
