// Package assistant generates assignments, analyzes submissions and answers
// course questions on top of the store and a chat completion API.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/coursemate/internal/llm"
	"github.com/pavelanni/coursemate/internal/llm/prompts"
	"github.com/pavelanni/coursemate/internal/llm/validate"
	"github.com/pavelanni/coursemate/internal/model"
)

// NoMaterialsAnswer is returned for courses without materials.
const NoMaterialsAnswer = "I don't have access to any course materials yet. Please wait for the professor to upload some materials."

// ErrInvalidInput marks requests rejected before any API call.
var ErrInvalidInput = errors.New("invalid input")

// materialFetchLimit bounds concurrent material loads per request.
const materialFetchLimit = 4

// Store is the persistence the assistant needs.
type Store interface {
	GetMaterial(ctx context.Context, id int64) (*model.Material, error)
	ListMaterials(ctx context.Context, courseID int64) ([]model.Material, error)
	CreateAssignment(ctx context.Context, a model.Assignment) (int64, error)
	GetAssignment(ctx context.Context, id int64) (*model.Assignment, error)
	CreateSubmission(ctx context.Context, sub model.Submission) (int64, error)
	GetSubmission(ctx context.Context, id int64) (*model.Submission, error)
	SetSubmissionAnalysis(ctx context.Context, id int64, an *model.SubmissionAnalysis) error
	AddChatMessage(ctx context.Context, m model.ChatMessage) (int64, error)
	AwardPoints(ctx context.Context, p model.PointAward) error
	AwardBadge(ctx context.Context, b model.Badge) (bool, error)
	CreateNotification(ctx context.Context, n model.Notification) (int64, error)
}

// Completer sends one chat completion.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Config tunes the assistant.
type Config struct {
	// QueueAnalysis routes submission analysis through the shared queue.
	QueueAnalysis bool
	// ExcerptLen bounds material content in assignment prompts.
	ExcerptLen int
	// Prompts overrides the built-in prompt templates.
	Prompts fs.FS
}

// Service runs the AI operations.
type Service struct {
	store   Store
	llm     Completer
	files   afero.Fs
	prompts *prompts.Builder
	cfg     Config
}

// New creates a Service. Material files are read from files.
func New(st Store, c Completer, files afero.Fs, cfg Config) (*Service, error) {
	b, err := prompts.New(cfg.Prompts)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if cfg.ExcerptLen > 0 {
		b = b.WithExcerptLen(cfg.ExcerptLen)
	}
	return &Service{store: st, llm: c, files: files, prompts: b, cfg: cfg}, nil
}

// GenerateAssignment drafts an assignment from the given materials. The
// result is validated but not stored; see SaveAssignment.
func (s *Service) GenerateAssignment(ctx context.Context, materialIDs []int64, quizType model.QuizType, customInstructions string) (*model.GeneratedAssignment, error) {
	if !quizType.Valid() {
		return nil, fmt.Errorf("%w: unknown quiz type %q", ErrInvalidInput, quizType)
	}
	if len(materialIDs) == 0 {
		return nil, fmt.Errorf("%w: no materials selected", ErrInvalidInput)
	}

	materials, err := s.loadMaterials(ctx, materialIDs)
	if err != nil {
		return nil, err
	}

	system, user, err := s.prompts.Assignment(prompts.GenerationRequest{
		QuizType:     quizType,
		Materials:    materials,
		Instructions: customInstructions,
	})
	if err != nil {
		return nil, fmt.Errorf("build assignment prompt: %w", err)
	}

	raw, err := s.llm.Complete(ctx, llm.Request{
		System:      system,
		User:        user,
		Format:      llm.FormatJSON,
		Temperature: 0.7,
		MaxTokens:   4000,
	})
	if err != nil {
		return nil, fmt.Errorf("generate assignment: %w", err)
	}

	a, err := validate.Assignment(raw)
	if err != nil {
		slog.Debug("rejected generated assignment", "raw", raw, "error", err)
		return nil, fmt.Errorf("generate assignment: %w", err)
	}
	slog.Info("generated assignment", "title", a.Title, "questions", len(a.Questions), "materials", len(materialIDs))
	return a, nil
}

// SaveAssignment stores a generated assignment as an unpublished draft.
func (s *Service) SaveAssignment(ctx context.Context, courseID int64, quizType model.QuizType, g *model.GeneratedAssignment) (*model.Assignment, error) {
	a := model.Assignment{
		CourseID:           courseID,
		Title:              g.Title,
		Description:        g.Description,
		QuizType:           quizType,
		Points:             g.Points,
		DueDate:            g.DueDate,
		AIGenerated:        true,
		Questions:          g.Questions,
		LearningObjectives: g.LearningObjectives,
	}
	id, err := s.store.CreateAssignment(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("save assignment: %w", err)
	}
	a.ID = id
	return &a, nil
}

// loadMaterials fetches materials concurrently, keeping the order of ids.
func (s *Service) loadMaterials(ctx context.Context, ids []int64) ([]prompts.Material, error) {
	out := make([]prompts.Material, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(materialFetchLimit)
	for i, id := range ids {
		g.Go(func() error {
			m, err := s.store.GetMaterial(gctx, id)
			if err != nil {
				return fmt.Errorf("load material: %w", err)
			}
			content, err := s.materialContent(m)
			if err != nil {
				return err
			}
			out[i] = prompts.Material{
				Title:       m.Title,
				Summary:     m.Summary,
				ContentType: m.ContentType,
				Content:     content,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// materialContent returns the text of a material, reading file materials
// from the file store.
func (s *Service) materialContent(m *model.Material) (string, error) {
	if m.ContentType != model.ContentFile || m.FilePath == "" {
		return m.Content, nil
	}
	data, err := afero.ReadFile(s.files, m.FilePath)
	if err != nil {
		return "", fmt.Errorf("read material file %s: %w", m.FilePath, err)
	}
	return string(data), nil
}

// AnalyzeSubmission asks the model to analyze a submission and stores the
// result on it, replacing any earlier analysis.
func (s *Service) AnalyzeSubmission(ctx context.Context, submissionID int64) (*model.SubmissionAnalysis, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("load submission: %w", err)
	}
	a, err := s.store.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}

	objectives := a.LearningObjectives
	if objectives == nil {
		objectives = []string{}
	}
	system, user, err := s.prompts.Analysis(prompts.AnalysisContext{
		Assignment: prompts.AnalysisAssignment{
			Title:       a.Title,
			Description: a.Description,
			Objectives:  objectives,
			Questions:   a.Questions,
		},
		Submission: prompts.AnalysisSubmission{
			Answers:   sub.Answers,
			Score:     sub.Score,
			TimeSpent: sub.TimeSpent,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build analysis prompt: %w", err)
	}

	raw, err := s.llm.Complete(ctx, llm.Request{
		System: system,
		User:   user,
		Format: llm.FormatJSON,
		Direct: !s.cfg.QueueAnalysis,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze submission %d: %w", submissionID, err)
	}

	an, err := validate.Analysis(raw)
	if err != nil {
		slog.Debug("rejected submission analysis", "raw", raw, "error", err)
		return nil, fmt.Errorf("analyze submission %d: %w", submissionID, err)
	}
	if err := s.store.SetSubmissionAnalysis(ctx, submissionID, an); err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	}
	slog.Info("analyzed submission", "submission_id", submissionID, "assignment_id", a.ID)
	return an, nil
}

// GenerateCourseAnswer answers a question using only the course's materials.
// Courses without materials get NoMaterialsAnswer without an API call.
func (s *Service) GenerateCourseAnswer(ctx context.Context, question string, courseID int64) (*model.CourseAnswer, error) {
	materials, err := s.store.ListMaterials(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	if len(materials) == 0 {
		return &model.CourseAnswer{Answer: NoMaterialsAnswer, References: []model.Reference{}}, nil
	}

	pms := make([]prompts.Material, 0, len(materials))
	for i := range materials {
		m := &materials[i]
		content, err := s.materialContent(m)
		if err != nil {
			slog.Warn("material file unreadable, using empty content", "material_id", m.ID, "error", err)
			content = ""
		}
		pms = append(pms, prompts.Material{
			Title:       m.Title,
			ContentType: m.ContentType,
			Content:     content,
		})
	}

	system, user, err := s.prompts.CourseAnswer(pms, question)
	if err != nil {
		return nil, fmt.Errorf("build course answer prompt: %w", err)
	}
	answer, err := s.llm.Complete(ctx, llm.Request{
		System:      system,
		User:        user,
		Format:      llm.FormatText,
		Temperature: 0.5,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("answer course question: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		return nil, fmt.Errorf("answer course question: %w", &llm.Error{Kind: llm.KindUnknown, Err: llm.ErrEmptyResponse})
	}

	return &model.CourseAnswer{Answer: answer, References: References(answer, materials)}, nil
}

// References lists the materials whose title occurs in answer, ignoring
// case, in material order.
func References(answer string, materials []model.Material) []model.Reference {
	lower := strings.ToLower(answer)
	refs := []model.Reference{}
	for _, m := range materials {
		title := strings.ToLower(strings.TrimSpace(m.Title))
		if title == "" {
			continue
		}
		if strings.Contains(lower, title) {
			refs = append(refs, model.Reference{MaterialID: m.ID, Title: m.Title})
		}
	}
	return refs
}

// SubmitAssignment scores and stores a student's answers, awards points and
// badges and analyzes the submission. When analysis fails the stored
// submission is returned together with the error. Reward failures are logged
// and never fail the call.
func (s *Service) SubmitAssignment(ctx context.Context, assignmentID, studentID int64, answers []int, timeSpent int) (*model.Submission, error) {
	a, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	if len(answers) != len(a.Questions) {
		return nil, fmt.Errorf("%w: got %d answers for %d questions", ErrInvalidInput, len(answers), len(a.Questions))
	}
	for i, ans := range answers {
		if ans < 0 || ans >= len(a.Questions[i].Options) {
			return nil, fmt.Errorf("%w: answer %d out of range", ErrInvalidInput, i+1)
		}
	}
	if timeSpent < 0 {
		timeSpent = 0
	}

	sub := model.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Answers:      answers,
		Score:        a.Score(answers),
		TimeSpent:    timeSpent,
	}
	id, err := s.store.CreateSubmission(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}
	sub.ID = id
	s.reward(ctx, a, &sub)

	an, err := s.AnalyzeSubmission(ctx, id)
	if err != nil {
		return &sub, err
	}
	sub.Analysis = an
	return &sub, nil
}

// Ask answers a student's course question, records the exchange and awards a
// participation point and the first question badge.
func (s *Service) Ask(ctx context.Context, courseID, studentID int64, question string) (*model.ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", ErrInvalidInput)
	}
	ans, err := s.GenerateCourseAnswer(ctx, question, courseID)
	if err != nil {
		return nil, err
	}

	msg := model.ChatMessage{
		CourseID:   courseID,
		StudentID:  studentID,
		Question:   question,
		Answer:     ans.Answer,
		References: ans.References,
	}
	id, err := s.store.AddChatMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("save chat message: %w", err)
	}
	msg.ID = id

	s.awardPoints(ctx, model.PointAward{
		StudentID: studentID,
		CourseID:  courseID,
		Category:  model.PointsParticipation,
		Points:    1,
		Reason:    "Asked a course question",
	})
	s.awardBadge(ctx, studentID, courseID, model.BadgeFirstQuestion)
	return &msg, nil
}

// reward credits the points and badges earned by a stored submission.
func (s *Service) reward(ctx context.Context, a *model.Assignment, sub *model.Submission) {
	if pts := a.PointsFor(sub.Score); pts > 0 {
		s.awardPoints(ctx, model.PointAward{
			StudentID: sub.StudentID,
			CourseID:  a.CourseID,
			Category:  model.PointsAssignment,
			Points:    pts,
			Reason:    "Completed " + a.Title,
		})
	}
	s.awardBadge(ctx, sub.StudentID, a.CourseID, model.BadgeFirstSubmission)
	if sub.Score == 100 {
		s.awardBadge(ctx, sub.StudentID, a.CourseID, model.BadgePerfectScore)
	}
}

func (s *Service) awardPoints(ctx context.Context, p model.PointAward) {
	if err := s.store.AwardPoints(ctx, p); err != nil {
		slog.Error("award points failed", "student_id", p.StudentID, "course_id", p.CourseID,
			"category", p.Category, "points", p.Points, "error", err)
	}
}

// awardBadge grants a badge once per course and notifies the student when it
// is new.
func (s *Service) awardBadge(ctx context.Context, studentID, courseID int64, kind model.BadgeKind) {
	added, err := s.store.AwardBadge(ctx, model.Badge{StudentID: studentID, CourseID: courseID, Kind: kind})
	if err != nil {
		slog.Error("award badge failed", "student_id", studentID, "course_id", courseID, "badge", kind, "error", err)
		return
	}
	if !added {
		return
	}
	slog.Info("badge awarded", "student_id", studentID, "course_id", courseID, "badge", kind)
	_, err = s.store.CreateNotification(ctx, model.Notification{
		UserID: studentID,
		Kind:   model.NotificationBadge,
		Title:  string(kind),
		Link:   "/me/badges",
	})
	if err != nil {
		slog.Warn("badge notification failed", "student_id", studentID, "badge", kind, "error", err)
	}
}
