package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/screentime-server/screentime-server/internal/models"
)

// ========== App Group Methods ==========

const appGroupColumns = `id, created_at, updated_at, user_id, name, apps`

func scanAppGroup(row interface{ Scan(...interface{}) error }) (*models.AppGroup, error) {
	group := &models.AppGroup{}
	err := row.Scan(&group.ID, &group.CreatedAt, &group.UpdatedAt, &group.UserID, &group.Name, &group.Apps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return group, err
}

// CreateAppGroup creates an app group
func (s *SQLStore) CreateAppGroup(ctx context.Context, group *models.AppGroup) error {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}

	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now

	_, err := s.exec(ctx, `
		INSERT INTO app_groups (`+appGroupColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		group.ID, group.CreatedAt, group.UpdatedAt, group.UserID, group.Name, group.Apps,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// GetAppGroup gets an app group by ID
func (s *SQLStore) GetAppGroup(ctx context.Context, id uuid.UUID) (*models.AppGroup, error) {
	return scanAppGroup(s.queryRow(ctx, `SELECT `+appGroupColumns+` FROM app_groups WHERE id = ?`, id))
}

// UpdateAppGroup updates name and apps of a group
func (s *SQLStore) UpdateAppGroup(ctx context.Context, group *models.AppGroup) error {
	group.UpdatedAt = time.Now().UTC()

	result, err := s.exec(ctx, `UPDATE app_groups SET updated_at = ?, name = ?, apps = ? WHERE id = ?`,
		group.UpdatedAt, group.Name, group.Apps, group.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return expectAffected(result)
}

// DeleteAppGroup deletes an app group
func (s *SQLStore) DeleteAppGroup(ctx context.Context, id uuid.UUID) error {
	result, err := s.exec(ctx, `DELETE FROM app_groups WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// ListAppGroups lists the groups of a user by name
func (s *SQLStore) ListAppGroups(ctx context.Context, userID uuid.UUID) ([]*models.AppGroup, error) {
	rows, err := s.query(ctx, `SELECT `+appGroupColumns+` FROM app_groups WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*models.AppGroup
	for rows.Next() {
		group, err := scanAppGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}
