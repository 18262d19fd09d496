package model

import (
	"context"
	"math"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent enrolls in courses and submits assignments.
	UserRoleStudent UserRole = "student"
	// UserRoleProfessor owns courses, materials and assignments.
	UserRoleProfessor UserRole = "professor"
	// UserRoleAdmin manages users.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Course is a unit of teaching owned by a professor.
type Course struct {
	ID          int64     `json:"id"`
	ProfessorID int64     `json:"professor_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"created_at"`
}

// ContentType tells how a material stores its body.
type ContentType string

const (
	ContentText ContentType = "text"
	ContentFile ContentType = "file"
)

// Material is a unit of course content used as generation context.
type Material struct {
	ID          int64       `json:"id"`
	CourseID    int64       `json:"course_id"`
	Title       string      `json:"title"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content,omitempty"`
	FilePath    string      `json:"file_path,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// QuizType selects the assignment authoring rules.
type QuizType string

const (
	QuizMultipleChoice QuizType = "multiple_choice"
	QuizSingleChoice   QuizType = "single_choice"
)

// Valid reports whether t is a known quiz type.
func (t QuizType) Valid() bool {
	return t == QuizMultipleChoice || t == QuizSingleChoice
}

// Question is a single quiz item. Options always holds exactly four entries.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// GeneratedAssignment is a validated assignment produced by the LLM.
type GeneratedAssignment struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Points             int        `json:"points"`
	DueDate            time.Time  `json:"dueDate"`
	LearningObjectives []string   `json:"learningObjectives,omitempty"`
	Questions          []Question `json:"questions"`
}

// Assignment is a stored assignment.
type Assignment struct {
	ID                 int64      `json:"id"`
	CourseID           int64      `json:"course_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	QuizType           QuizType   `json:"type"`
	Points             int        `json:"points"`
	DueDate            time.Time  `json:"due_date"`
	AIGenerated        bool       `json:"ai_generated"`
	Published          bool       `json:"published"`
	Questions          []Question `json:"questions"`
	LearningObjectives []string   `json:"learning_objectives,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Score returns the percentage of answers matching the correct option.
// Answers beyond the question count are ignored.
func (a Assignment) Score(answers []int) float64 {
	if len(a.Questions) == 0 {
		return 0
	}
	correct := 0
	for i, q := range a.Questions {
		if i < len(answers) && answers[i] == q.CorrectAnswer {
			correct++
		}
	}
	return float64(correct) / float64(len(a.Questions)) * 100
}

// PointsFor converts a percentage score into earned assignment points.
func (a Assignment) PointsFor(score float64) int {
	return int(math.Round(score * float64(a.Points) / 100))
}

// DetailedAnalysis breaks an analysis down into observations.
type DetailedAnalysis struct {
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Patterns   []string `json:"patterns"`
}

// SubmissionAnalysis is the LLM's assessment of a submission.
type SubmissionAnalysis struct {
	PerformanceSummary string           `json:"performance_summary"`
	TopicsMastered     []string         `json:"topics_mastered"`
	TopicsToReview     []string         `json:"topics_to_review"`
	DetailedAnalysis   DetailedAnalysis `json:"detailed_analysis"`
	Recommendations    []string         `json:"recommendations"`
	StudyStrategies    []string         `json:"study_strategies"`
	Resources          []string         `json:"resources"`
	NextSteps          []string         `json:"next_steps"`
}

// Submission is a student's recorded answers to an assignment.
type Submission struct {
	ID           int64               `json:"id"`
	AssignmentID int64               `json:"assignment_id"`
	StudentID    int64               `json:"student_id"`
	Answers      []int               `json:"answers"`
	Score        float64             `json:"score"`
	TimeSpent    int                 `json:"time_spent"`
	Analysis     *SubmissionAnalysis `json:"analysis,omitempty"`
	SubmittedAt  time.Time           `json:"submitted_at"`
}

// Reference points an answer at the material it cites.
type Reference struct {
	MaterialID int64  `json:"material_id"`
	Title      string `json:"title"`
}

// CourseAnswer is the assistant's reply to a course question.
type CourseAnswer struct {
	Answer     string      `json:"answer"`
	References []Reference `json:"references"`
}

// ChatMessage is a persisted course question and its answer.
type ChatMessage struct {
	ID         int64       `json:"id"`
	CourseID   int64       `json:"course_id"`
	StudentID  int64       `json:"student_id"`
	Question   string      `json:"question"`
	Answer     string      `json:"answer"`
	References []Reference `json:"material_references"`
	CreatedAt  time.Time   `json:"created_at"`
}

// PointCategory groups awarded points.
type PointCategory string

const (
	PointsAssignment    PointCategory = "assignment"
	PointsQuiz          PointCategory = "quiz"
	PointsParticipation PointCategory = "participation"
	PointsCommunity     PointCategory = "community"
	PointsBonus         PointCategory = "bonus"
)

// PointAward is a single ledger entry.
type PointAward struct {
	ID        int64         `json:"id"`
	StudentID int64         `json:"student_id"`
	CourseID  int64         `json:"course_id"`
	Category  PointCategory `json:"category"`
	Points    int           `json:"points"`
	Reason    string        `json:"reason"`
	CreatedAt time.Time     `json:"created_at"`
}

// PointsSummary totals a student's points by category.
type PointsSummary struct {
	StudentID  int64                 `json:"student_id"`
	Total      int                   `json:"total"`
	ByCategory map[PointCategory]int `json:"points_by_category"`
}

// Announcement is a professor's message to everyone enrolled in a course.
type Announcement struct {
	ID        int64     `json:"id"`
	CourseID  int64     `json:"course_id"`
	AuthorID  int64     `json:"author_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationKind tells what a notification is about.
type NotificationKind string

const (
	NotificationAnnouncement NotificationKind = "announcement"
	NotificationBadge        NotificationKind = "badge"
)

// Notification is a message in a user's inbox. For badge notifications Title
// holds the BadgeKind.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// BadgeKind names an achievement.
type BadgeKind string

const (
	BadgeFirstSubmission BadgeKind = "first_submission"
	BadgePerfectScore    BadgeKind = "perfect_score"
	BadgeFirstQuestion   BadgeKind = "first_question"
)

// Badge is an achievement a student earned in a course. A badge is earned at
// most once per course.
type Badge struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	CourseID  int64     `json:"course_id"`
	Kind      BadgeKind `json:"badge"`
	Name      string    `json:"name,omitempty"`
	AwardedAt time.Time `json:"awarded_at"`
}

// Config holds runtime parameters set via CLI flags.
type Config struct {
	BasePath      string // URL prefix for sub-path deployments
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	MaxUploadSize int64  // Largest accepted material upload in bytes
	AllowSignup   bool   // Let visitors create student accounts
}
