package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/pavelanni/coursemate/internal/assistant"
	"github.com/pavelanni/coursemate/internal/model"
)

type createCourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.store.ListCourses(r.Context(), *model.UserFromContext(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Code = strings.TrimSpace(req.Code)
	if req.Title == "" || req.Code == "" {
		fail(w, r, fmt.Errorf("%w: title and code required", assistant.ErrInvalidInput))
		return
	}

	c := model.Course{
		ProfessorID: model.UserFromContext(r.Context()).ID,
		Title:       req.Title,
		Description: req.Description,
		Code:        req.Code,
	}
	id, err := h.store.CreateCourse(r.Context(), c)
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := h.store.GetCourse(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	slog.Info("created course", "id", id, "code", c.Code)
	writeJSON(w, http.StatusCreated, created)
}

type updateCourseRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// handleUpdateCourse changes the title or description of a course. The code
// is fixed once created.
func (h *Handler) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req updateCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c := *courseFromContext(r.Context())
	if req.Title != nil {
		c.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if c.Title == "" {
		fail(w, r, fmt.Errorf("%w: title required", assistant.ErrInvalidInput))
		return
	}
	if err := h.store.UpdateCourse(r.Context(), c); err != nil {
		fail(w, r, err)
		return
	}
	slog.Info("updated course", "id", c.ID)
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	c := courseFromContext(r.Context())
	u := model.UserFromContext(r.Context())
	if err := h.store.Enroll(r.Context(), c.ID, u.ID); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.store.ListMaterials(r.Context(), courseFromContext(r.Context()).ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if materials == nil {
		materials = []model.Material{}
	}
	writeJSON(w, http.StatusOK, materials)
}

type createMaterialRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Summary string `json:"summary"`
}

// handleCreateMaterial accepts a JSON text material or a multipart file
// upload in the "file" field.
func (h *Handler) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
	c := courseFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)

	var m model.Material
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		m, err = h.saveUpload(r, c.ID)
	} else {
		var req createMaterialRequest
		if err = decodeJSON(r, &req); err == nil {
			m = model.Material{
				Title:       strings.TrimSpace(req.Title),
				ContentType: model.ContentText,
				Content:     req.Content,
				Summary:     req.Summary,
			}
			if m.Title == "" || strings.TrimSpace(m.Content) == "" {
				err = fmt.Errorf("%w: title and content required", assistant.ErrInvalidInput)
			}
		}
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	m.CourseID = c.ID
	id, err := h.store.CreateMaterial(r.Context(), m)
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := h.store.GetMaterial(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	slog.Info("added material", "id", id, "course_id", c.ID, "type", m.ContentType)
	writeJSON(w, http.StatusCreated, created)
}

// saveUpload writes the uploaded file under the course's directory.
func (h *Handler) saveUpload(r *http.Request, courseID int64) (model.Material, error) {
	if err := r.ParseMultipartForm(h.config.MaxUploadSize); err != nil {
		return model.Material{}, fmt.Errorf("%w: parse upload: %v", assistant.ErrInvalidInput, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return model.Material{}, fmt.Errorf("%w: no file uploaded", assistant.ErrInvalidInput)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return model.Material{}, fmt.Errorf("read upload: %w", err)
	}

	name := filepath.Base(header.Filename)
	dir := fmt.Sprintf("%d", courseID)
	p := path.Join(dir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), name))
	if err := h.files.MkdirAll(dir, 0o755); err != nil {
		return model.Material{}, fmt.Errorf("create material dir: %w", err)
	}
	if err := afero.WriteFile(h.files, p, data, 0o644); err != nil {
		return model.Material{}, fmt.Errorf("write material file: %w", err)
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return model.Material{
		Title:       title,
		ContentType: model.ContentFile,
		FilePath:    p,
		Summary:     r.FormValue("summary"),
	}, nil
}
