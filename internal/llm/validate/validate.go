// Package validate parses LLM JSON payloads and enforces the structures the
// prompts ask for. Invalid payloads are rejected whole, never patched.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pavelanni/coursemate/internal/model"
)

// ParseError reports a payload that is not valid JSON.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse LLM response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports the first structural violation found in a payload.
type SchemaError struct {
	Kind   string   // "assignment" or "analysis"
	Path   string   // empty for top-level fields, e.g. "questions[2]" otherwise
	Fields []string // missing or malformed fields at Path
	Reason string
}

func (e *SchemaError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid " + e.Kind + ": " + e.Reason)
	if e.Path != "" {
		sb.WriteString(" at " + e.Path)
	}
	if len(e.Fields) > 0 {
		sb.WriteString(" (" + strings.Join(e.Fields, ", ") + ")")
	}
	return sb.String()
}

const (
	kindAssignment = "assignment"
	kindAnalysis   = "analysis"

	optionCount = 4
)

func decodeObject(raw, kind string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &SchemaError{Kind: kind, Reason: "response is not a JSON object"}
	}
	return obj, nil
}

// Assignment validates a generated assignment payload.
func Assignment(raw string) (*model.GeneratedAssignment, error) {
	obj, err := decodeObject(raw, kindAssignment)
	if err != nil {
		return nil, err
	}

	var out model.GeneratedAssignment
	var missing []string

	if s, ok := nonEmptyString(obj["title"]); ok {
		out.Title = s
	} else {
		missing = append(missing, "title")
	}
	if s, ok := nonEmptyString(obj["description"]); ok {
		out.Description = s
	} else {
		missing = append(missing, "description")
	}
	if n, ok := integer(obj["points"]); ok && n > 0 {
		out.Points = n
	} else {
		missing = append(missing, "points")
	}
	if s, ok := nonEmptyString(obj["dueDate"]); ok {
		if due, ok := parseDueDate(s); ok {
			out.DueDate = due
		} else {
			missing = append(missing, "dueDate")
		}
	} else {
		missing = append(missing, "dueDate")
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Kind: kindAssignment, Fields: missing, Reason: "missing or malformed fields"}
	}

	if v, present := obj["learningObjectives"]; present && v != nil {
		objs, ok := stringList(v)
		if !ok {
			return nil, &SchemaError{Kind: kindAssignment, Fields: []string{"learningObjectives"}, Reason: "expected an array of strings"}
		}
		out.LearningObjectives = objs
	}

	qs, ok := obj["questions"].([]any)
	if !ok || len(qs) == 0 {
		return nil, &SchemaError{Kind: kindAssignment, Fields: []string{"questions"}, Reason: "missing or invalid questions"}
	}

	out.Questions = make([]model.Question, 0, len(qs))
	for i, item := range qs {
		q, bad := question(item)
		if len(bad) > 0 {
			return nil, &SchemaError{
				Kind:   kindAssignment,
				Path:   fmt.Sprintf("questions[%d]", i),
				Fields: bad,
				Reason: "malformed question structure",
			}
		}
		out.Questions = append(out.Questions, q)
	}
	return &out, nil
}

// question converts one question object, returning the names of bad fields.
func question(item any) (model.Question, []string) {
	var q model.Question
	obj, ok := item.(map[string]any)
	if !ok {
		return q, []string{"question", "options", "correctAnswer"}
	}

	var bad []string
	if s, ok := nonEmptyString(obj["question"]); ok {
		q.Text = s
	} else {
		bad = append(bad, "question")
	}

	opts, ok := stringList(obj["options"])
	if ok && len(opts) == optionCount && allNonEmpty(opts) {
		q.Options = opts
	} else {
		bad = append(bad, "options")
	}

	if n, ok := integer(obj["correctAnswer"]); ok && n >= 0 && n < optionCount {
		q.CorrectAnswer = n
	} else {
		bad = append(bad, "correctAnswer")
	}

	if v, present := obj["explanation"]; present && v != nil {
		if s, ok := v.(string); ok {
			q.Explanation = s
		} else {
			bad = append(bad, "explanation")
		}
	}
	return q, bad
}

// Analysis validates a submission analysis payload. Missing arrays default to
// empty; present arrays must hold strings.
func Analysis(raw string) (*model.SubmissionAnalysis, error) {
	obj, err := decodeObject(raw, kindAnalysis)
	if err != nil {
		return nil, err
	}

	var out model.SubmissionAnalysis
	s, ok := nonEmptyString(obj["performance_summary"])
	if !ok {
		return nil, &SchemaError{Kind: kindAnalysis, Fields: []string{"performance_summary"}, Reason: "missing or malformed fields"}
	}
	out.PerformanceSummary = s

	lists := []struct {
		key  string
		dst  *[]string
		uniq bool
	}{
		{"topics_mastered", &out.TopicsMastered, true},
		{"topics_to_review", &out.TopicsToReview, true},
		{"recommendations", &out.Recommendations, false},
		{"study_strategies", &out.StudyStrategies, false},
		{"resources", &out.Resources, false},
		{"next_steps", &out.NextSteps, false},
	}
	for _, l := range lists {
		vals, ok := optionalList(obj[l.key])
		if !ok {
			return nil, &SchemaError{Kind: kindAnalysis, Fields: []string{l.key}, Reason: "expected an array of strings"}
		}
		if l.uniq {
			vals = dedupe(vals)
		}
		*l.dst = vals
	}

	detail := map[string]any{}
	if v, present := obj["detailed_analysis"]; present && v != nil {
		d, ok := v.(map[string]any)
		if !ok {
			return nil, &SchemaError{Kind: kindAnalysis, Fields: []string{"detailed_analysis"}, Reason: "expected an object"}
		}
		detail = d
	}
	sub := []struct {
		key string
		dst *[]string
	}{
		{"strengths", &out.DetailedAnalysis.Strengths},
		{"weaknesses", &out.DetailedAnalysis.Weaknesses},
		{"patterns", &out.DetailedAnalysis.Patterns},
	}
	for _, l := range sub {
		vals, ok := optionalList(detail[l.key])
		if !ok {
			return nil, &SchemaError{
				Kind:   kindAnalysis,
				Path:   "detailed_analysis",
				Fields: []string{l.key},
				Reason: "expected an array of strings",
			}
		}
		*l.dst = vals
	}
	return &out, nil
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// integer accepts JSON numbers with no fractional part.
func integer(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func stringList(v any) ([]string, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func optionalList(v any) ([]string, bool) {
	if v == nil {
		return []string{}, true
	}
	return stringList(v)
}

func allNonEmpty(ss []string) bool {
	for _, s := range ss {
		if strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := ss[:0]
	for _, s := range ss {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// dueDateLayouts are the date forms accepted from the model. Zoneless forms
// are read as UTC.
var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
