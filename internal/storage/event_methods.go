package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/screentime-server/screentime-server/internal/models"
)

// ========== Event Log Methods ==========

// CreateEventLog creates an event log entry
func (s *SQLStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := s.exec(ctx, `
		INSERT INTO event_logs (id, created_at, device_id, user_id, type, description, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.CreatedAt, event.DeviceID, event.UserID,
		event.Type, event.Description, event.Details,
	)
	return err
}

// ListEventLogs lists event logs with filters, newest first
func (s *SQLStore) ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	where := " WHERE 1=1"
	args := []interface{}{}

	if filters.DeviceID != nil {
		where += " AND device_id = ?"
		args = append(args, *filters.DeviceID)
	}

	if filters.UserID != nil {
		where += " AND user_id = ?"
		args = append(args, *filters.UserID)
	}

	if filters.OwnerID != nil {
		where += " AND (user_id = ? OR device_id IN (SELECT id FROM devices WHERE user_id = ?))"
		args = append(args, *filters.OwnerID, *filters.OwnerID)
	}

	if filters.Type != nil {
		where += " AND type = ?"
		args = append(args, *filters.Type)
	}

	if filters.StartTime != nil {
		where += " AND created_at >= ?"
		args = append(args, filters.StartTime.UTC())
	}

	if filters.EndTime != nil {
		where += " AND created_at <= ?"
		args = append(args, filters.EndTime.UTC())
	}

	var count int64
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM event_logs"+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	rows, err := s.query(ctx, `
		SELECT id, created_at, device_id, user_id, type, description, details
		FROM event_logs`+where+` ORDER BY created_at DESC`+pageClause(limit, offset), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*models.EventLog
	for rows.Next() {
		event := &models.EventLog{}
		if err := rows.Scan(
			&event.ID, &event.CreatedAt, &event.DeviceID, &event.UserID,
			&event.Type, &event.Description, &event.Details,
		); err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	return events, count, rows.Err()
}
