package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/coursemate/internal/llm/chunk"
	"github.com/pavelanni/coursemate/internal/model"
)

//go:embed templates/*.tmpl
var embedded embed.FS

var (
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
	userInputRegex          = regexp.MustCompile(`(?i)</?\s*user-input\b[^>]*>`)
)

// Task identifies which instruction set a prompt was built for.
type Task string

const (
	TaskAssignment         Task = "assignment"
	TaskSubmissionAnalysis Task = "submission_analysis"
	TaskCourseAnswer       Task = "course_answer"
)

const (
	// DefaultExcerptLen bounds each material's content in assignment prompts.
	DefaultExcerptLen = 8000
	// TruncationMarker is appended to excerpts that were cut.
	TruncationMarker = "..."
	// Refusal is the sentence the assistant must use when materials lack the answer.
	Refusal = "I cannot find this information in the course materials"

	maxUserInputLen = 4000
)

// AssignmentSchema is the output structure requested for assignment generation.
// The validate package enforces it.
const AssignmentSchema = `{
  "title": "Assignment Title",
  "description": "Assignment Description",
  "points": 10,
  "dueDate": "2025-03-01T23:59:59Z",
  "learningObjectives": ["Learning objective"],
  "questions": [
    {
      "question": "Question text",
      "options": ["Option 1", "Option 2", "Option 3", "Option 4"],
      "correctAnswer": 0,
      "explanation": "Why the correct option is right"
    }
  ]
}`

// AnalysisSchema is the output structure requested for submission analysis.
const AnalysisSchema = `{
  "performance_summary": "Overall analysis of performance",
  "topics_mastered": ["List of mastered topics"],
  "topics_to_review": ["List of topics needing review"],
  "detailed_analysis": {
    "strengths": ["List of specific strengths"],
    "weaknesses": ["List of specific areas to improve"],
    "patterns": ["Observed learning patterns"]
  },
  "recommendations": ["Specific actionable recommendations"],
  "study_strategies": ["Suggested study strategies"],
  "resources": ["Recommended learning resources"],
  "next_steps": ["Prioritized action items"]
}`

var templateNames = []string{
	"assignment_system.tmpl",
	"assignment_user.tmpl",
	"analysis_system.tmpl",
	"answer_system.tmpl",
	"answer_user.tmpl",
}

// Material is a material excerpt as it appears in a prompt.
type Material struct {
	Title       string
	Summary     string
	ContentType model.ContentType
	Content     string
}

// GenerationRequest is the transient input to assignment generation.
type GenerationRequest struct {
	QuizType     model.QuizType
	Materials    []Material
	Instructions string
}

// AnalysisContext is serialized as the user prompt of a submission analysis.
type AnalysisContext struct {
	Assignment AnalysisAssignment `json:"assignment"`
	Submission AnalysisSubmission `json:"submission"`
}

// AnalysisAssignment describes the assignment being analyzed.
type AnalysisAssignment struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Objectives  []string         `json:"objectives"`
	Questions   []model.Question `json:"questions"`
}

// AnalysisSubmission describes the student's attempt.
type AnalysisSubmission struct {
	Answers   []int   `json:"answers"`
	Score     float64 `json:"score"`
	TimeSpent int     `json:"timeSpent"`
}

// Builder renders system and user prompts from templates.
type Builder struct {
	tmpl       map[string]*template.Template
	excerptLen int
}

// New parses prompt templates from fsys. A nil fsys selects the built-in templates.
func New(fsys fs.FS) (*Builder, error) {
	if fsys == nil {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}

	b := &Builder{
		tmpl:       make(map[string]*template.Template, len(templateNames)),
		excerptLen: DefaultExcerptLen,
	}
	for _, name := range templateNames {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", name, err)
		}
		t, err := template.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
		}
		b.tmpl[name] = t
	}
	return b, nil
}

// WithExcerptLen returns a copy of b that truncates material content to n characters.
func (b *Builder) WithExcerptLen(n int) *Builder {
	c := *b
	if n > 0 {
		c.excerptLen = n
	}
	return &c
}

// Assignment builds the prompts for generating a quiz from materials.
func (b *Builder) Assignment(req GenerationRequest) (system, user string, err error) {
	if !req.QuizType.Valid() {
		return "", "", errors.New("invalid quiz type: " + string(req.QuizType))
	}
	if len(req.Materials) == 0 {
		return "", "", errors.New("no materials supplied")
	}

	system, err = b.render("assignment_system.tmpl", map[string]any{
		"QuizType": string(req.QuizType),
		"Schema":   AssignmentSchema,
	})
	if err != nil {
		return "", "", err
	}

	excerpts := make([]Material, len(req.Materials))
	for i, m := range req.Materials {
		m.Content = Excerpt(m.Content, b.excerptLen)
		excerpts[i] = m
	}
	user, err = b.render("assignment_user.tmpl", map[string]any{
		"QuizType":     string(req.QuizType),
		"Materials":    excerpts,
		"Instructions": sanitizeInput(req.Instructions, ""),
	})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

// Analysis builds the prompts for analyzing a submission.
func (b *Builder) Analysis(ac AnalysisContext) (system, user string, err error) {
	system, err = b.render("analysis_system.tmpl", map[string]any{"Schema": AnalysisSchema})
	if err != nil {
		return "", "", err
	}
	data, err := json.Marshal(ac)
	if err != nil {
		return "", "", fmt.Errorf("encode analysis context: %w", err)
	}
	return system, string(data), nil
}

// CourseAnswer builds the grounded Q&A prompts. Materials without content are
// skipped unless they are files.
func (b *Builder) CourseAnswer(materials []Material, question string) (system, user string, err error) {
	var usable []Material
	for _, m := range materials {
		if m.Content != "" || m.ContentType == model.ContentFile {
			usable = append(usable, m)
		}
	}

	system, err = b.render("answer_system.tmpl", map[string]any{
		"Materials": usable,
		"Refusal":   Refusal,
	})
	if err != nil {
		return "", "", err
	}
	user, err = b.render("answer_user.tmpl", map[string]any{
		"Question": sanitizeInput(question, "[No question provided]"),
	})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

func (b *Builder) render(name string, data any) (string, error) {
	t, ok := b.tmpl[name]
	if !ok {
		return "", errors.New("prompt template not loaded: " + name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Excerpt bounds content to limit characters and appends TruncationMarker
// when anything was cut. The cut falls on a paragraph boundary when that
// keeps at least nine tenths of limit; otherwise content is cut at limit.
func Excerpt(content string, limit int) string {
	if limit <= 0 {
		limit = DefaultExcerptLen
	}
	if utf8.RuneCountInString(content) <= limit {
		return content
	}

	// The first chunk is the longest paragraph-aligned prefix that fits.
	for first := range chunk.All(content, limit) {
		if n := utf8.RuneCountInString(first); n <= limit && n >= limit-limit/10 {
			return first + TruncationMarker
		}
		break
	}
	return string([]rune(content)[:limit]) + TruncationMarker
}

func sanitizeInput(s, empty string) string {
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	s = userInputRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if s == "" {
		return empty
	}
	if utf8.RuneCountInString(s) > maxUserInputLen {
		runes := []rune(s)
		s = string(runes[:maxUserInputLen]) + "\n\n[Input truncated due to length]"
	}
	return s
}
