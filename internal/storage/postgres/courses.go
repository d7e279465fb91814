package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coursify/internal/models"
	"coursify/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const courseColumns = `id, title, description, instructor_id, created_at, updated_at`

func scanCourses(rows pgx.Rows) ([]models.Course, error) {
	defer rows.Close()

	var courses []models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.InstructorID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}

	return courses, rows.Err()
}

// SaveCourse создает новый курс.
func (s *Storage) SaveCourse(ctx context.Context, course *models.Course) error {
	const op = "storage.postgres.SaveCourse"

	query := `
		INSERT INTO courses(id, title, description, instructor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.Exec(ctx, query,
		course.ID,
		course.Title,
		course.Description,
		course.InstructorID,
		course.CreatedAt,
		course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CourseByID находит курс по ID.
func (s *Storage) CourseByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	const op = "storage.postgres.CourseByID"

	query := `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE id = $1
	`

	var c models.Course
	err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Title, &c.Description, &c.InstructorID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &c, nil
}

// ListCourses возвращает все курсы.
func (s *Storage) ListCourses(ctx context.Context) ([]models.Course, error) {
	const op = "storage.postgres.ListCourses"

	query := `
		SELECT ` + courseColumns + `
		FROM courses
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	courses, err := scanCourses(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return courses, nil
}

// CoursesByInstructor возвращает курсы, созданные преподавателем.
func (s *Storage) CoursesByInstructor(ctx context.Context, instructorID uuid.UUID) ([]models.Course, error) {
	const op = "storage.postgres.CoursesByInstructor"

	query := `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE instructor_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, instructorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	courses, err := scanCourses(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return courses, nil
}

// UpdateCourse сохраняет изменённые поля курса.
func (s *Storage) UpdateCourse(ctx context.Context, course *models.Course) error {
	const op = "storage.postgres.UpdateCourse"

	query := `
		UPDATE courses
		SET title = $2, description = $3, updated_at = $4
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, course.ID, course.Title, course.Description, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteCourse удаляет курс вместе с записями на него (ON DELETE CASCADE).
func (s *Storage) DeleteCourse(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.DeleteCourse"

	query := `
		DELETE FROM courses
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// Enroll записывает студента на курс.
func (s *Storage) Enroll(ctx context.Context, courseID, userID uuid.UUID) error {
	const op = "storage.postgres.Enroll"

	query := `
		INSERT INTO enrollments(course_id, user_id, created_at)
		VALUES ($1, $2, $3)
	`

	_, err := s.db.Exec(ctx, query, courseID, userID, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
			case pgerrcode.ForeignKeyViolation:
				return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
			}
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// EnrolledCourses возвращает курсы, на которые записан студент.
func (s *Storage) EnrolledCourses(ctx context.Context, userID uuid.UUID) ([]models.Course, error) {
	const op = "storage.postgres.EnrolledCourses"

	query := `
		SELECT c.id, c.title, c.description, c.instructor_id, c.created_at, c.updated_at
		FROM courses c
		JOIN enrollments e ON e.course_id = c.id
		WHERE e.user_id = $1
		ORDER BY e.created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	courses, err := scanCourses(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return courses, nil
}
