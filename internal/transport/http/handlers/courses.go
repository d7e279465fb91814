package handlers

import (
	"net/http"

	"coursify/internal/transport/http/httperr"
	"coursify/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type courseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type coursesResponse struct {
	Courses []courseResponse `json:"courses"`
}

// ListCourses — GET /courses (публичный каталог).
func (h *Handlers) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Svc.ListCourses(r.Context())
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, coursesResponse{Courses: coursesFromModels(courses)})
}

// CreateCourse — POST /courses/instructor (только instructor).
func (h *Handlers) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var in courseRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidArgument)
		return
	}

	course, err := h.Svc.CreateCourse(r.Context(), identity(r).UserID, in.Title, in.Description)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, courseFromModel(course))
}

// MyCourses — GET /courses/instructor/mine (только instructor).
func (h *Handlers) MyCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Svc.CoursesByInstructor(r.Context(), identity(r).UserID)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, coursesResponse{Courses: coursesFromModels(courses)})
}

// UpdateCourse — PUT /courses/instructor/{id} (только владелец).
func (h *Handlers) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidArgument)
		return
	}

	var in courseRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidArgument)
		return
	}

	course, err := h.Svc.UpdateCourse(r.Context(), identity(r).UserID, courseID, in.Title, in.Description)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, courseFromModel(course))
}

// DeleteCourse — DELETE /courses/instructor/{id} (только владелец).
func (h *Handlers) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidArgument)
		return
	}

	if err := h.Svc.DeleteCourse(r.Context(), identity(r).UserID, courseID); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "course deleted"})
}

// Enroll — POST /courses/{id}/enroll (только student).
func (h *Handlers) Enroll(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidArgument)
		return
	}

	course, err := h.Svc.Enroll(r.Context(), identity(r).UserID, courseID)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, courseFromModel(course))
}

// EnrolledCourses — GET /courses/me/enrolled (только student).
func (h *Handlers) EnrolledCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Svc.EnrolledCourses(r.Context(), identity(r).UserID)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, coursesResponse{Courses: coursesFromModels(courses)})
}

// identity достаёт проверенную идентичность. Маршруты курсов стоят за
// Auth, поэтому отсутствие идентичности — ошибка сборки роутера.
func identity(r *http.Request) middleware.Identity {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		panic("handlers: identity missing in context")
	}

	return id
}

func courseIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}
