package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coursify/internal/models"
	"coursify/internal/storage"

	"github.com/google/uuid"
)

// CreateCourse создает курс от имени преподавателя.
func (s *Service) CreateCourse(ctx context.Context, instructorID uuid.UUID, title, description string) (*models.Course, error) {
	const op = "service.courses.CreateCourse"

	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyTitle)
	}

	now := time.Now().UTC()
	course := &models.Course{
		ID:           uuid.New(),
		Title:        title,
		Description:  description,
		InstructorID: instructorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return course, nil
}

// ListCourses возвращает все курсы (публичный каталог).
func (s *Service) ListCourses(ctx context.Context) ([]models.Course, error) {
	const op = "service.courses.ListCourses"

	courses, err := s.storage.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return courses, nil
}

// CoursesByInstructor возвращает курсы, созданные преподавателем.
func (s *Service) CoursesByInstructor(ctx context.Context, instructorID uuid.UUID) ([]models.Course, error) {
	const op = "service.courses.CoursesByInstructor"

	courses, err := s.storage.CoursesByInstructor(ctx, instructorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return courses, nil
}

// UpdateCourse изменяет название/описание собственного курса преподавателя.
// Пустые поля сохраняют прежние значения.
func (s *Service) UpdateCourse(ctx context.Context, instructorID, courseID uuid.UUID, title, description string) (*models.Course, error) {
	const op = "service.courses.UpdateCourse"

	course, err := s.ownedCourse(ctx, instructorID, courseID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if t := strings.TrimSpace(title); t != "" {
		course.Title = t
	}
	if d := strings.TrimSpace(description); d != "" {
		course.Description = d
	}

	if err := s.storage.UpdateCourse(ctx, course); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrCourseNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return course, nil
}

// DeleteCourse удаляет собственный курс преподавателя.
func (s *Service) DeleteCourse(ctx context.Context, instructorID, courseID uuid.UUID) error {
	const op = "service.courses.DeleteCourse"

	if _, err := s.ownedCourse(ctx, instructorID, courseID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteCourse(ctx, courseID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrCourseNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Enroll записывает студента на курс.
func (s *Service) Enroll(ctx context.Context, userID, courseID uuid.UUID) (*models.Course, error) {
	const op = "service.courses.Enroll"

	course, err := s.storage.CourseByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrCourseNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.Enroll(ctx, courseID, userID); err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return nil, fmt.Errorf("%s: %w", op, ErrAlreadyEnrolled)
		case errors.Is(err, storage.ErrNotFound):
			// Курс удалили между проверкой и вставкой.
			return nil, fmt.Errorf("%s: %w", op, ErrCourseNotFound)
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return course, nil
}

// EnrolledCourses возвращает курсы, на которые записан студент.
func (s *Service) EnrolledCourses(ctx context.Context, userID uuid.UUID) ([]models.Course, error) {
	const op = "service.courses.EnrolledCourses"

	courses, err := s.storage.EnrolledCourses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return courses, nil
}

// ownedCourse возвращает курс, если он существует и принадлежит преподавателю.
func (s *Service) ownedCourse(ctx context.Context, instructorID, courseID uuid.UUID) (*models.Course, error) {
	course, err := s.storage.CourseByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCourseNotFound
		}

		return nil, err
	}

	if course.InstructorID != instructorID {
		return nil, ErrNotCourseOwner
	}

	return course, nil
}
