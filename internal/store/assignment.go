package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/coursemate/internal/model"
)

const assignmentColumns = `id, course_id, title, description, quiz_type, points, due_date,
	ai_generated, published, questions, learning_objectives, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row scanner) (model.Assignment, error) {
	var a model.Assignment
	var questions, objectives string
	err := row.Scan(&a.ID, &a.CourseID, &a.Title, &a.Description, &a.QuizType, &a.Points, &a.DueDate,
		&a.AIGenerated, &a.Published, &questions, &objectives, &a.CreatedAt)
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(questions), &a.Questions); err != nil {
		return a, fmt.Errorf("decode questions of assignment %d: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(objectives), &a.LearningObjectives); err != nil {
		return a, fmt.Errorf("decode objectives of assignment %d: %w", a.ID, err)
	}
	return a, nil
}

// CreateAssignment stores an assignment with its questions.
func (s *Store) CreateAssignment(ctx context.Context, a model.Assignment) (int64, error) {
	questions, err := encodeJSON(a.Questions)
	if err != nil {
		return 0, fmt.Errorf("encode questions: %w", err)
	}
	if a.LearningObjectives == nil {
		a.LearningObjectives = []string{}
	}
	objectives, err := encodeJSON(a.LearningObjectives)
	if err != nil {
		return 0, fmt.Errorf("encode objectives: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (course_id, title, description, quiz_type, points, due_date,
			ai_generated, published, questions, learning_objectives, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.CourseID, a.Title, a.Description, a.QuizType, a.Points, a.DueDate,
		a.AIGenerated, a.Published, questions, objectives, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert assignment: %w", err)
	}
	return res.LastInsertId()
}

// GetAssignment returns an assignment by ID.
func (s *Store) GetAssignment(ctx context.Context, id int64) (*model.Assignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "assignment", id)
	}
	return &a, nil
}

// ListAssignments returns a course's assignments, newest first.
func (s *Store) ListAssignments(ctx context.Context, courseID int64) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE course_id = ? ORDER BY id DESC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetAssignmentPublished shows or hides an assignment from students.
func (s *Store) SetAssignmentPublished(ctx context.Context, id int64, published bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE assignments SET published = ? WHERE id = ?`, published, id)
	if err != nil {
		return err
	}
	return requireRow(res, "assignment", id)
}

const submissionColumns = `id, assignment_id, student_id, answers, score, time_spent, analysis, submitted_at`

func scanSubmission(row scanner) (model.Submission, error) {
	var sub model.Submission
	var answers string
	var analysis sql.NullString
	err := row.Scan(&sub.ID, &sub.AssignmentID, &sub.StudentID, &answers, &sub.Score, &sub.TimeSpent,
		&analysis, &sub.SubmittedAt)
	if err != nil {
		return sub, err
	}
	if err := json.Unmarshal([]byte(answers), &sub.Answers); err != nil {
		return sub, fmt.Errorf("decode answers of submission %d: %w", sub.ID, err)
	}
	if analysis.Valid && analysis.String != "" {
		var an model.SubmissionAnalysis
		if err := json.Unmarshal([]byte(analysis.String), &an); err != nil {
			return sub, fmt.Errorf("decode analysis of submission %d: %w", sub.ID, err)
		}
		sub.Analysis = &an
	}
	return sub, nil
}

// CreateSubmission stores a student's answers. Any analysis is stored separately.
func (s *Store) CreateSubmission(ctx context.Context, sub model.Submission) (int64, error) {
	answers, err := encodeJSON(sub.Answers)
	if err != nil {
		return 0, fmt.Errorf("encode answers: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (assignment_id, student_id, answers, score, time_spent, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sub.AssignmentID, sub.StudentID, answers, sub.Score, sub.TimeSpent, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	return res.LastInsertId()
}

// GetSubmission returns a submission by ID.
func (s *Store) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "submission", id)
	}
	return &sub, nil
}

// ListSubmissions returns all submissions for an assignment in submission order.
func (s *Store) ListSubmissions(ctx context.Context, assignmentID int64) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE assignment_id = ? ORDER BY id`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// SetSubmissionAnalysis overwrites the analysis stored on a submission.
func (s *Store) SetSubmissionAnalysis(ctx context.Context, id int64, an *model.SubmissionAnalysis) error {
	data, err := encodeJSON(an)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET analysis = ? WHERE id = ?`, data, id)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	return requireRow(res, "submission", id)
}

func requireRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
