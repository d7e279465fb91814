package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coursify/internal/models"
	"coursify/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AttachRefreshToken безусловно перезаписывает хэш refresh-токена пользователя.
func (s *Storage) AttachRefreshToken(ctx context.Context, userID uuid.UUID, hash string, expiresAt time.Time) error {
	const op = "storage.postgres.AttachRefreshToken"

	query := `
		UPDATE users
		SET refresh_token_hash = $2, refresh_expires_at = $3, updated_at = $4
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, userID, hash, expiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// UserByRefreshToken выполняет обратный поиск пользователя по хэшу refresh-токена.
func (s *Storage) UserByRefreshToken(ctx context.Context, hash string) (*models.User, error) {
	const op = "storage.postgres.UserByRefreshToken"

	// Пустой хэш означает "нет сессии" и никогда не должен совпадать.
	if hash == "" {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE refresh_token_hash = $1
	`

	user, err := scanUser(s.db.QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// RotateRefreshToken атомарно заменяет текущий хэш refresh-токена.
// Условие WHERE по старому хэшу делает замену compare-and-swap: из двух
// конкурентных ротаций одного токена ровно одна затронет строку.
func (s *Storage) RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	const op = "storage.postgres.RotateRefreshToken"

	query := `
		UPDATE users
		SET refresh_token_hash = $3, refresh_expires_at = $4, updated_at = $5
		WHERE id = $1 AND refresh_token_hash = $2
	`

	cmdTag, err := s.db.Exec(ctx, query, userID, oldHash, newHash, expiresAt, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

// ClearRefreshToken сбрасывает сессию с данным хэшем. Отсутствие совпадения
// не является ошибкой: logout идемпотентен.
func (s *Storage) ClearRefreshToken(ctx context.Context, hash string) error {
	const op = "storage.postgres.ClearRefreshToken"

	if hash == "" {
		return nil
	}

	query := `
		UPDATE users
		SET refresh_token_hash = '', refresh_expires_at = 'epoch', updated_at = $2
		WHERE refresh_token_hash = $1
	`

	if _, err := s.db.Exec(ctx, query, hash, time.Now().UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ClearExpiredSessions сбрасывает все просроченные сессии.
func (s *Storage) ClearExpiredSessions(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.ClearExpiredSessions"

	query := `
		UPDATE users
		SET refresh_token_hash = '', refresh_expires_at = 'epoch', updated_at = $1
		WHERE refresh_token_hash <> '' AND refresh_expires_at <= $1
	`

	if _, err := s.db.Exec(ctx, query, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
