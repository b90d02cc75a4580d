// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries over
// submissions used by the admin CLI.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/nursery-backend/internal/domain"
)

// TypeStats summarizes the submissions of one type.
type TypeStats struct {
	Type     domain.SubmissionType
	Status   string
	Count    int64
	LatestAt *time.Time
}

// SubmissionStats returns per (type, status) counts and the newest
// created_at within each group, ordered by type then status.
func SubmissionStats(ctx context.Context, db *gorm.DB) ([]TypeStats, error) {
	var rows []struct {
		Type   string
		Status string
		Count  int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Submission{}).
		Select("type, status, COUNT(*) AS count").
		Group("type, status").
		Order("type, status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]TypeStats, 0, len(rows))
	for _, r := range rows {
		st := TypeStats{Type: domain.SubmissionType(r.Type), Status: r.Status, Count: r.Count}

		// Get latest created_at (avoid MAX() -> TEXT in SQLite)
		var latest struct {
			CreatedAt time.Time
		}
		if err := db.WithContext(ctx).
			Model(&domain.Submission{}).
			Where("type = ? AND status = ?", r.Type, r.Status).
			Select("created_at").
			Order("created_at DESC").
			Limit(1).
			Scan(&latest).Error; err != nil {
			return nil, err
		}
		if !latest.CreatedAt.IsZero() {
			t := latest.CreatedAt
			st.LatestAt = &t
		}
		out = append(out, st)
	}
	return out, nil
}
