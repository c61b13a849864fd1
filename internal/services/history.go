package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rash-identifier/internal/models"
)

// HistoryService persists analysis attempt metadata.
type HistoryService struct {
	db *sql.DB
}

func NewHistoryService(db *sql.DB) *HistoryService {
	return &HistoryService{db: db}
}

func (s *HistoryService) Record(ctx context.Context, rec models.Analysis) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, session_id, provider, model, image_mime, image_bytes, image_sha256,
			status, error, result_chars, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, rec.ID, rec.SessionID, rec.Provider, rec.Model, rec.ImageMIME, rec.ImageBytes, rec.ImageSHA256,
		string(rec.Status), rec.Error, rec.ResultChars, rec.Duration.Milliseconds(), rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// Recent returns the newest records first.
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]models.Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, provider, model, image_mime, image_bytes, image_sha256,
			status, error, result_chars, duration_ms, created_at
		FROM analyses
		ORDER BY created_at DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []models.Analysis
	for rows.Next() {
		var (
			rec        models.Analysis
			status     string
			durationMS int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.Provider,
			&rec.Model,
			&rec.ImageMIME,
			&rec.ImageBytes,
			&rec.ImageSHA256,
			&status,
			&rec.Error,
			&rec.ResultChars,
			&durationMS,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		rec.Status = models.AnalysisStatus(status)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

func (s *HistoryService) Stats(ctx context.Context) (models.AnalysisStats, error) {
	stats := models.AnalysisStats{ByStatus: make(map[models.AnalysisStatus]int)}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(duration_ms), 0) FROM analyses;
	`).Scan(&stats.Total, &stats.AvgDurationMS); err != nil {
		return stats, fmt.Errorf("count analyses: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM analyses GROUP BY status;
	`)
	if err != nil {
		return stats, fmt.Errorf("group analyses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[models.AnalysisStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate status counts: %w", err)
	}

	var last time.Time
	err = s.db.QueryRowContext(ctx, `
		SELECT created_at FROM analyses ORDER BY created_at DESC LIMIT 1;
	`).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return stats, fmt.Errorf("latest analysis: %w", err)
	default:
		stats.LastAt = &last
	}
	return stats, nil
}
