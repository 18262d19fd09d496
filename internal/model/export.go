package model

import "time"

// CourseExport is the top-level JSON structure for course result export.
type CourseExport struct {
	CourseID    int64              `json:"course_id"`
	Title       string             `json:"title"`
	Code        string             `json:"code"`
	LLMModel    string             `json:"llm_model,omitempty"`
	ExportedAt  time.Time          `json:"exported_at"`
	Assignments []AssignmentExport `json:"assignments"`
}

// AssignmentExport holds one assignment with all of its submissions.
type AssignmentExport struct {
	Title       string             `json:"title"`
	Points      int                `json:"points"`
	AIGenerated bool               `json:"ai_generated"`
	Questions   int                `json:"num_questions"`
	Submissions []SubmissionExport `json:"submissions"`
}

// SubmissionExport is a single student's attempt for export.
type SubmissionExport struct {
	Username    string              `json:"username"`
	DisplayName string              `json:"display_name"`
	Score       float64             `json:"score"`
	TimeSpent   int                 `json:"time_spent"`
	SubmittedAt time.Time           `json:"submitted_at"`
	Analysis    *SubmissionAnalysis `json:"analysis,omitempty"`
}
