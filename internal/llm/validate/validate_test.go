package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pavelanni/coursemate/internal/llm/prompts"
)

func assignmentJSON(t *testing.T, mutate func(map[string]any)) string {
	t.Helper()
	obj := map[string]any{
		"title":       "Concurrency Quiz",
		"description": "Checks goroutines and channels",
		"points":      10,
		"dueDate":     "2025-03-01T23:59:59Z",
		"questions": []any{
			map[string]any{
				"question":      "What is a goroutine?",
				"options":       []any{"A thread", "A lightweight thread", "A process", "A channel"},
				"correctAnswer": 1,
				"explanation":   "Managed by the Go runtime.",
			},
			map[string]any{
				"question":      "What does close do?",
				"options":       []any{"Frees memory", "Stops a goroutine", "Marks no more sends", "Nothing"},
				"correctAnswer": 2,
			},
		},
	}
	if mutate != nil {
		mutate(obj)
	}
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func question0(obj map[string]any) map[string]any {
	return obj["questions"].([]any)[0].(map[string]any)
}

func TestAssignmentValid(t *testing.T) {
	for _, n := range []int{1, 3, 12} {
		t.Run(fmt.Sprintf("%d questions", n), func(t *testing.T) {
			raw := assignmentJSON(t, func(obj map[string]any) {
				qs := make([]any, n)
				for i := range qs {
					qs[i] = map[string]any{
						"question":      fmt.Sprintf("Q%d", i),
						"options":       []any{"a", "b", "c", "d"},
						"correctAnswer": i % 4,
					}
				}
				obj["questions"] = qs
			})
			got, err := Assignment(raw)
			if err != nil {
				t.Fatalf("Assignment: %v", err)
			}
			if len(got.Questions) != n {
				t.Fatalf("got %d questions, want %d", len(got.Questions), n)
			}
			for i, q := range got.Questions {
				if q.CorrectAnswer != i%4 || len(q.Options) != 4 {
					t.Errorf("question %d = %+v", i, q)
				}
			}
		})
	}
}

func TestAssignmentFields(t *testing.T) {
	got, err := Assignment(assignmentJSON(t, nil))
	if err != nil {
		t.Fatalf("Assignment: %v", err)
	}
	if got.Title != "Concurrency Quiz" || got.Points != 10 {
		t.Errorf("got %+v", got)
	}
	if got.DueDate.Year() != 2025 || got.DueDate.Month() != 3 || got.DueDate.Day() != 1 {
		t.Errorf("due date = %v", got.DueDate)
	}
	if got.Questions[0].Explanation != "Managed by the Go runtime." {
		t.Errorf("explanation = %q", got.Questions[0].Explanation)
	}
}

func TestAssignmentDueDateLayouts(t *testing.T) {
	tests := []struct {
		in         string
		hour, mins int
	}{
		{"2025-03-01T23:59:59Z", 23, 59},
		{"2025-03-01T23:59:59+00:00", 23, 59},
		{"2025-03-01T23:59:59", 23, 59},
		{"2025-03-01T23:59", 23, 59},
		{"2025-03-01 23:59:59", 23, 59},
		{"2025-03-01 23:59", 23, 59},
		{" 2025-03-01 ", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Assignment(assignmentJSON(t, func(o map[string]any) { o["dueDate"] = tt.in }))
			if err != nil {
				t.Fatalf("Assignment: %v", err)
			}
			d := got.DueDate
			if d.Year() != 2025 || d.Month() != 3 || d.Day() != 1 || d.Hour() != tt.hour || d.Minute() != tt.mins {
				t.Errorf("due date = %v", d)
			}
		})
	}
}

func TestAssignmentSchemaErrors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(map[string]any)
		wantPath   string
		wantFields []string
	}{
		{"missing title", func(o map[string]any) { delete(o, "title") }, "", []string{"title"}},
		{"missing several", func(o map[string]any) {
			delete(o, "title")
			o["description"] = ""
			o["points"] = 0
		}, "", []string{"title", "description", "points"}},
		{"bad due date", func(o map[string]any) { o["dueDate"] = "next friday" }, "", []string{"dueDate"}},
		{"points not a number", func(o map[string]any) { o["points"] = "ten" }, "", []string{"points"}},
		{"no questions", func(o map[string]any) { o["questions"] = []any{} }, "", []string{"questions"}},
		{"questions not array", func(o map[string]any) { o["questions"] = "none" }, "", []string{"questions"}},
		{"three options", func(o map[string]any) {
			question0(o)["options"] = []any{"a", "b", "c"}
		}, "questions[0]", []string{"options"}},
		{"five options", func(o map[string]any) {
			o["questions"].([]any)[1].(map[string]any)["options"] = []any{"a", "b", "c", "d", "e"}
		}, "questions[1]", []string{"options"}},
		{"empty option", func(o map[string]any) {
			question0(o)["options"] = []any{"a", "", "c", "d"}
		}, "questions[0]", []string{"options"}},
		{"answer out of range", func(o map[string]any) {
			question0(o)["correctAnswer"] = 4
		}, "questions[0]", []string{"correctAnswer"}},
		{"answer negative", func(o map[string]any) {
			question0(o)["correctAnswer"] = -1
		}, "questions[0]", []string{"correctAnswer"}},
		{"answer fractional", func(o map[string]any) {
			question0(o)["correctAnswer"] = 1.5
		}, "questions[0]", []string{"correctAnswer"}},
		{"answer as string", func(o map[string]any) {
			question0(o)["correctAnswer"] = "1"
		}, "questions[0]", []string{"correctAnswer"}},
		{"empty question and bad options", func(o map[string]any) {
			question0(o)["question"] = " "
			question0(o)["options"] = nil
		}, "questions[0]", []string{"question", "options"}},
		{"question not object", func(o map[string]any) {
			o["questions"] = []any{"just text"}
		}, "questions[0]", []string{"question", "options", "correctAnswer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assignment(assignmentJSON(t, tt.mutate))
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v (%T), want *SchemaError", err, err)
			}
			if se.Path != tt.wantPath {
				t.Errorf("path = %q, want %q", se.Path, tt.wantPath)
			}
			if strings.Join(se.Fields, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("fields = %v, want %v", se.Fields, tt.wantFields)
			}
		})
	}
}

func TestThreeOptionsMessage(t *testing.T) {
	_, err := Assignment(assignmentJSON(t, func(o map[string]any) {
		question0(o)["options"] = []any{"a", "b", "c"}
	}))
	if err == nil || !strings.Contains(err.Error(), "malformed question structure") {
		t.Errorf("err = %v, want malformed question structure", err)
	}
}

func TestParseErrors(t *testing.T) {
	for _, raw := range []string{"", "{", "not json", `{"title": "x"} trailing`} {
		_, err := Assignment(raw)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Assignment(%q) err = %v, want *ParseError", raw, err)
		}
		_, err = Analysis(raw)
		if !errors.As(err, &pe) {
			t.Errorf("Analysis(%q) err = %v, want *ParseError", raw, err)
		}
	}
}

func TestNonObjectIsSchemaError(t *testing.T) {
	_, err := Assignment(`[1, 2, 3]`)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Errorf("err = %v, want *SchemaError", err)
	}
}

func TestAnalysisDefaults(t *testing.T) {
	got, err := Analysis(`{"performance_summary": "Solid work", "topics_mastered": ["loops", "loops", "maps"]}`)
	if err != nil {
		t.Fatalf("Analysis: %v", err)
	}
	if got.PerformanceSummary != "Solid work" {
		t.Errorf("summary = %q", got.PerformanceSummary)
	}
	if len(got.TopicsMastered) != 2 || got.TopicsMastered[0] != "loops" || got.TopicsMastered[1] != "maps" {
		t.Errorf("topics mastered = %v, want [loops maps]", got.TopicsMastered)
	}
	for name, list := range map[string][]string{
		"topics_to_review": got.TopicsToReview,
		"recommendations":  got.Recommendations,
		"study_strategies": got.StudyStrategies,
		"resources":        got.Resources,
		"next_steps":       got.NextSteps,
		"strengths":        got.DetailedAnalysis.Strengths,
		"weaknesses":       got.DetailedAnalysis.Weaknesses,
		"patterns":         got.DetailedAnalysis.Patterns,
	} {
		if list == nil || len(list) != 0 {
			t.Errorf("%s = %#v, want empty non-nil slice", name, list)
		}
	}
}

func TestAnalysisSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"missing summary", `{"topics_mastered": []}`, "performance_summary"},
		{"list is string", `{"performance_summary": "ok", "topics_to_review": "maps"}`, "topics_to_review"},
		{"list of numbers", `{"performance_summary": "ok", "resources": [1, 2]}`, "resources"},
		{"detail not object", `{"performance_summary": "ok", "detailed_analysis": []}`, "detailed_analysis"},
		{"detail bad list", `{"performance_summary": "ok", "detailed_analysis": {"patterns": "x"}}`, "patterns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analysis(tt.raw)
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *SchemaError", err)
			}
			if len(se.Fields) != 1 || se.Fields[0] != tt.want {
				t.Errorf("fields = %v, want [%s]", se.Fields, tt.want)
			}
		})
	}
}

// The schemas shown to the model must pass the validator unchanged.
func TestPromptSchemasValidate(t *testing.T) {
	a, err := Assignment(prompts.AssignmentSchema)
	if err != nil {
		t.Fatalf("AssignmentSchema rejected: %v", err)
	}
	if len(a.Questions) != 1 || len(a.LearningObjectives) != 1 {
		t.Errorf("assignment schema decoded as %+v", a)
	}

	an, err := Analysis(prompts.AnalysisSchema)
	if err != nil {
		t.Fatalf("AnalysisSchema rejected: %v", err)
	}
	if len(an.DetailedAnalysis.Strengths) != 1 || len(an.NextSteps) != 1 {
		t.Errorf("analysis schema decoded as %+v", an)
	}
}
