package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/screentime-server/screentime-server/internal/models"
)

// ========== User Methods ==========

const userColumns = `id, created_at, updated_at, email, name, password_hash, is_admin, is_active, last_login_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email, &user.Name,
		&user.PasswordHash, &user.IsAdmin, &user.IsActive, &user.LastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// CreateUser creates a new user. PasswordHash must already be set.
func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.CreatedAt, user.UpdatedAt, user.Email, user.Name,
		user.PasswordHash, user.IsAdmin, user.IsActive, user.LastLoginAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// GetUser gets a user by ID
func (s *SQLStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByEmail gets a user by email
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// UpdateUser updates a user
func (s *SQLStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := s.exec(ctx, `
		UPDATE users SET
			updated_at = ?, email = ?, name = ?, password_hash = ?,
			is_admin = ?, is_active = ?, last_login_at = ?
		WHERE id = ?`,
		user.UpdatedAt, user.Email, user.Name, user.PasswordHash,
		user.IsAdmin, user.IsActive, user.LastLoginAt, user.ID,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return expectAffected(result)
}

// DeleteUser deletes a user
func (s *SQLStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result, err := s.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// ListUsers lists users
func (s *SQLStore) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	var count int64
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return nil, 0, err
	}

	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`+pageClause(limit, offset))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, count, rows.Err()
}
