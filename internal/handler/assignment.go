package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pavelanni/coursemate/internal/assistant"
	"github.com/pavelanni/coursemate/internal/handler/views"
	appI18n "github.com/pavelanni/coursemate/internal/i18n"
	"github.com/pavelanni/coursemate/internal/model"
	"github.com/pavelanni/coursemate/internal/store"
)

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.ListAssignments(r.Context(), courseFromContext(r.Context()).ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	student := model.UserFromContext(r.Context()).Role == model.UserRoleStudent
	out := make([]model.Assignment, 0, len(all))
	for _, a := range all {
		if student && !a.Published {
			continue
		}
		out = append(out, a)
	}
	writeJSON(w, http.StatusOK, out)
}

type createAssignmentRequest struct {
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	Type               model.QuizType   `json:"type"`
	Points             int              `json:"points"`
	DueDate            time.Time        `json:"due_date"`
	Questions          []model.Question `json:"questions"`
	LearningObjectives []string         `json:"learning_objectives"`
	Published          bool             `json:"published"`
}

func (req createAssignmentRequest) check() error {
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("%w: title required", assistant.ErrInvalidInput)
	}
	if !req.Type.Valid() {
		return fmt.Errorf("%w: unknown quiz type %q", assistant.ErrInvalidInput, req.Type)
	}
	if req.Points <= 0 || len(req.Questions) == 0 {
		return fmt.Errorf("%w: points and questions required", assistant.ErrInvalidInput)
	}
	for i, q := range req.Questions {
		if strings.TrimSpace(q.Text) == "" || len(q.Options) != 4 ||
			q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return fmt.Errorf("%w: malformed question %d", assistant.ErrInvalidInput, i+1)
		}
	}
	return nil
}

func (h *Handler) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		fail(w, r, err)
		return
	}

	a := model.Assignment{
		CourseID:           courseFromContext(r.Context()).ID,
		Title:              strings.TrimSpace(req.Title),
		Description:        req.Description,
		QuizType:           req.Type,
		Points:             req.Points,
		DueDate:            req.DueDate,
		Published:          req.Published,
		Questions:          req.Questions,
		LearningObjectives: req.LearningObjectives,
	}
	id, err := h.store.CreateAssignment(r.Context(), a)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.ID = id
	writeJSON(w, http.StatusCreated, a)
}

type generateRequest struct {
	MaterialIDs        []int64        `json:"material_ids"`
	Type               model.QuizType `json:"type"`
	CustomInstructions string         `json:"custom_instructions"`
	Save               bool           `json:"save"`
}

// handleGenerateAssignment drafts an assignment from course materials. With
// save set the draft is stored unpublished.
func (h *Handler) handleGenerateAssignment(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c := courseFromContext(r.Context())

	materials, err := h.store.ListMaterials(r.Context(), c.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	inCourse := make(map[int64]bool, len(materials))
	for _, m := range materials {
		inCourse[m.ID] = true
	}
	for _, id := range req.MaterialIDs {
		if !inCourse[id] {
			fail(w, r, fmt.Errorf("%w: material %d is not part of course %d", assistant.ErrInvalidInput, id, c.ID))
			return
		}
	}

	g, err := h.ai.GenerateAssignment(r.Context(), req.MaterialIDs, req.Type, req.CustomInstructions)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("X-Generated-Summary", appI18n.Tp(r.Context(), "QuestionsGenerated", len(g.Questions)))
	if !req.Save {
		writeJSON(w, http.StatusOK, g)
		return
	}

	a, err := h.ai.SaveAssignment(r.Context(), c.ID, req.Type, g)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// assignmentForUser loads the assignment in the URL and checks the user may
// see its course.
func (h *Handler) assignmentForUser(r *http.Request) (*model.Assignment, error) {
	id, err := idParam(r, "assignmentID")
	if err != nil {
		return nil, err
	}
	a, err := h.store.GetAssignment(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if _, err := h.courseOf(r, model.UserFromContext(r.Context()), a); err != nil {
		return nil, err
	}
	return a, nil
}

func (h *Handler) handlePublishAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := h.assignmentForUser(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.store.SetAssignmentPublished(r.Context(), a.ID, true); err != nil {
		fail(w, r, err)
		return
	}
	a.Published = true
	writeJSON(w, http.StatusOK, a)
}

type submitRequest struct {
	Answers   []int `json:"answers"`
	TimeSpent int   `json:"time_spent"`
}

type submitResponse struct {
	Submission    *model.Submission `json:"submission"`
	PointsMessage string            `json:"points_message,omitempty"`
	AnalysisError string            `json:"analysis_error,omitempty"`
}

// handleSubmit scores a student's answers. A failed analysis still returns
// the stored submission, with the failure reported alongside.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	a, err := h.assignmentForUser(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !a.Published {
		fail(w, r, fmt.Errorf("assignment %d unpublished: %w", a.ID, store.ErrNotFound))
		return
	}
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	u := model.UserFromContext(r.Context())
	sub, err := h.ai.SubmitAssignment(r.Context(), a.ID, u.ID, req.Answers, req.TimeSpent)
	if sub == nil {
		fail(w, r, err)
		return
	}

	resp := submitResponse{Submission: sub}
	if err != nil {
		_, msgID, _ := classify(err)
		slog.Error("submission analysis failed", "submission_id", sub.ID, "error", err)
		resp.AnalysisError = appI18n.T(r.Context(), msgID)
	}
	if pts := a.PointsFor(sub.Score); pts > 0 {
		resp.PointsMessage = appI18n.Tp(r.Context(), "PointsEarned", pts)
	}
	respond(w, r, http.StatusCreated, resp, views.AnalysisCard(*sub))
}

// submissionForUser loads the submission in the URL. Students see their own;
// professors see those of their courses.
func (h *Handler) submissionForUser(r *http.Request) (*model.Submission, error) {
	id, err := idParam(r, "submissionID")
	if err != nil {
		return nil, err
	}
	sub, err := h.store.GetSubmission(r.Context(), id)
	if err != nil {
		return nil, err
	}
	u := model.UserFromContext(r.Context())
	if u.Role == model.UserRoleStudent {
		if sub.StudentID != u.ID {
			return nil, errForbidden
		}
		return sub, nil
	}
	a, err := h.store.GetAssignment(r.Context(), sub.AssignmentID)
	if err != nil {
		return nil, err
	}
	if _, err := h.courseOf(r, u, a); err != nil {
		return nil, err
	}
	return sub, nil
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.submissionForUser(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, sub, views.AnalysisCard(*sub))
}

// handleAnalyze reruns the analysis, replacing the stored one.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sub, err := h.submissionForUser(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	an, err := h.ai.AnalyzeSubmission(r.Context(), sub.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	sub.Analysis = an
	respond(w, r, http.StatusOK, sub, views.AnalysisCard(*sub))
}
