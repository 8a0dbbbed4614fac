package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/screentime-server/screentime-server/internal/models"
	"github.com/screentime-server/screentime-server/pkg/devicestate"
)

// ========== Usage Report Methods ==========

// CreateUsageReport stores a device report
func (s *SQLStore) CreateUsageReport(ctx context.Context, report *models.UsageReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	report.CreatedAt = time.Now().UTC()
	if report.ReportedAt.IsZero() {
		report.ReportedAt = report.CreatedAt
	}

	_, err := s.exec(ctx, `
		INSERT INTO usage_reports (id, created_at, device_id, reported_at, usage, state, state_extra)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.CreatedAt, report.DeviceID, report.ReportedAt.UTC(), report.Usage,
		string(report.State.DeviceState), report.State.Extra,
	)
	return err
}

// ListUsageReports lists the reports of a device, newest first
func (s *SQLStore) ListUsageReports(ctx context.Context, deviceID uuid.UUID, limit, offset int) ([]*models.UsageReport, int64, error) {
	var count int64
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM usage_reports WHERE device_id = ?`, deviceID).Scan(&count); err != nil {
		return nil, 0, err
	}

	rows, err := s.query(ctx, `
		SELECT id, created_at, device_id, reported_at, usage, state, state_extra
		FROM usage_reports
		WHERE device_id = ?
		ORDER BY reported_at DESC`+pageClause(limit, offset), deviceID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reports []*models.UsageReport
	for rows.Next() {
		report := &models.UsageReport{}
		var state string
		if err := rows.Scan(
			&report.ID, &report.CreatedAt, &report.DeviceID, &report.ReportedAt,
			&report.Usage, &state, &report.State.Extra,
		); err != nil {
			return nil, 0, err
		}
		report.State.DeviceState = devicestate.DeviceState(state)
		reports = append(reports, report)
	}
	return reports, count, rows.Err()
}
