package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"coursify/internal/config"
	"coursify/internal/models"
	"coursify/internal/service"

	"github.com/google/uuid"
)

// Handlers агрегирует зависимости HTTP-хендлеров.
type Handlers struct {
	Svc    *service.Service
	Cookie config.CookieConfig

	// RefreshTTL задаёт срок жизни refresh-cookie (Max-Age).
	RefreshTTL time.Duration
}

func New(svc *service.Service, cookie config.CookieConfig, refreshTTL time.Duration) *Handlers {
	return &Handlers{
		Svc:        svc,
		Cookie:     cookie,
		RefreshTTL: refreshTTL,
	}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через httperr.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// accountResponse — публичное представление учётной записи.
type accountResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

func accountFromModel(u *models.User) accountResponse {
	return accountResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  string(u.Role),
	}
}

// courseResponse — публичное представление курса.
type courseResponse struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	InstructorID uuid.UUID `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func courseFromModel(c *models.Course) courseResponse {
	return courseResponse{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		InstructorID: c.InstructorID,
		CreatedAt:    c.CreatedAt,
	}
}

func coursesFromModels(cs []models.Course) []courseResponse {
	out := make([]courseResponse, 0, len(cs))
	for i := range cs {
		out = append(out, courseFromModel(&cs[i]))
	}
	return out
}
