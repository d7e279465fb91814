package models

import (
	"time"

	"github.com/google/uuid"
)

// Course — курс, созданный преподавателем.
type Course struct {
	ID           uuid.UUID
	Title        string
	Description  string
	InstructorID uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
