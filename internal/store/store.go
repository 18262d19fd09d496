package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/coursemate/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS courses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		professor_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (professor_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		course_id INTEGER NOT NULL,
		student_id INTEGER NOT NULL,
		enrolled_at DATETIME NOT NULL,
		PRIMARY KEY (course_id, student_id),
		FOREIGN KEY (course_id) REFERENCES courses(id),
		FOREIGN KEY (student_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS materials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		course_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'text',
		content TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (course_id) REFERENCES courses(id)
	);

	CREATE TABLE IF NOT EXISTS assignments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		course_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		quiz_type TEXT NOT NULL,
		points INTEGER NOT NULL DEFAULT 0,
		due_date DATETIME NOT NULL,
		ai_generated BOOLEAN NOT NULL DEFAULT 0,
		published BOOLEAN NOT NULL DEFAULT 0,
		questions TEXT NOT NULL DEFAULT '[]',
		learning_objectives TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (course_id) REFERENCES courses(id)
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assignment_id INTEGER NOT NULL,
		student_id INTEGER NOT NULL,
		answers TEXT NOT NULL DEFAULT '[]',
		score REAL NOT NULL DEFAULT 0,
		time_spent INTEGER NOT NULL DEFAULT 0,
		analysis TEXT,
		submitted_at DATETIME NOT NULL,
		FOREIGN KEY (assignment_id) REFERENCES assignments(id),
		FOREIGN KEY (student_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS course_chats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		course_id INTEGER NOT NULL,
		student_id INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		material_references TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (course_id) REFERENCES courses(id)
	);

	CREATE TABLE IF NOT EXISTS point_awards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		points INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS announcements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		course_id INTEGER NOT NULL,
		author_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (course_id) REFERENCES courses(id)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS student_badges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		badge TEXT NOT NULL,
		awarded_at DATETIME NOT NULL,
		UNIQUE (student_id, course_id, badge)
	);

	CREATE TABLE IF NOT EXISTS app_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("get %s %v: %w", what, id, err)
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CreateCourse stores a course.
func (s *Store) CreateCourse(ctx context.Context, c model.Course) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (professor_id, title, description, code, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ProfessorID, c.Title, c.Description, c.Code, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert course: %w", err)
	}
	return res.LastInsertId()
}

// GetCourse returns a course by ID.
func (s *Store) GetCourse(ctx context.Context, id int64) (*model.Course, error) {
	var c model.Course
	err := s.db.QueryRowContext(ctx,
		`SELECT id, professor_id, title, description, code, created_at FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.ProfessorID, &c.Title, &c.Description, &c.Code, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err, "course", id)
	}
	return &c, nil
}

// UpdateCourse changes a course's title and description.
func (s *Store) UpdateCourse(ctx context.Context, c model.Course) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE courses SET title = ?, description = ? WHERE id = ?`, c.Title, c.Description, c.ID)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return requireRow(res, "course", c.ID)
}

// ListCourses returns the courses visible to a user: everything for admins,
// owned courses for professors and enrolled courses for students.
func (s *Store) ListCourses(ctx context.Context, u model.User) ([]model.Course, error) {
	query := `SELECT id, professor_id, title, description, code, created_at FROM courses`
	var args []any
	switch u.Role {
	case model.UserRoleProfessor:
		query += ` WHERE professor_id = ?`
		args = append(args, u.ID)
	case model.UserRoleStudent:
		query += ` WHERE id IN (SELECT course_id FROM enrollments WHERE student_id = ?)`
		args = append(args, u.ID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.ProfessorID, &c.Title, &c.Description, &c.Code, &c.CreatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// Enroll adds a student to a course. Enrolling twice is a no-op.
func (s *Store) Enroll(ctx context.Context, courseID, studentID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (course_id, student_id, enrolled_at) VALUES (?, ?, ?)
		 ON CONFLICT(course_id, student_id) DO NOTHING`,
		courseID, studentID, time.Now(),
	)
	return err
}

// IsEnrolled reports whether a student is enrolled in a course.
func (s *Store) IsEnrolled(ctx context.Context, courseID, studentID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE course_id = ? AND student_id = ?`, courseID, studentID,
	).Scan(&count)
	return count > 0, err
}

// CreateMaterial stores a material.
func (s *Store) CreateMaterial(ctx context.Context, m model.Material) (int64, error) {
	if m.ContentType == "" {
		m.ContentType = model.ContentText
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO materials (course_id, title, content_type, content, file_path, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.CourseID, m.Title, m.ContentType, m.Content, m.FilePath, m.Summary, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert material: %w", err)
	}
	return res.LastInsertId()
}

// GetMaterial returns a material by ID.
func (s *Store) GetMaterial(ctx context.Context, id int64) (*model.Material, error) {
	var m model.Material
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, title, content_type, content, file_path, summary, created_at
		 FROM materials WHERE id = ?`, id,
	).Scan(&m.ID, &m.CourseID, &m.Title, &m.ContentType, &m.Content, &m.FilePath, &m.Summary, &m.CreatedAt)
	if err != nil {
		return nil, notFound(err, "material", id)
	}
	return &m, nil
}

// ListMaterials returns a course's materials in creation order.
func (s *Store) ListMaterials(ctx context.Context, courseID int64) ([]model.Material, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, title, content_type, content, file_path, summary, created_at
		 FROM materials WHERE course_id = ? ORDER BY created_at, id`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var materials []model.Material
	for rows.Next() {
		var m model.Material
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Title, &m.ContentType, &m.Content, &m.FilePath, &m.Summary, &m.CreatedAt); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}
