package models

import "time"

type AnalysisStatus string

const (
	StatusOK        AnalysisStatus = "ok"
	StatusError     AnalysisStatus = "error"
	StatusCancelled AnalysisStatus = "cancelled"
	StatusTimeout   AnalysisStatus = "timeout"
)

// Analysis is the metadata kept for one inference attempt. The image and the
// returned text are never stored.
type Analysis struct {
	ID          string
	SessionID   string
	Provider    string
	Model       string
	ImageMIME   string
	ImageBytes  int
	ImageSHA256 string
	Status      AnalysisStatus
	Error       string
	ResultChars int
	Duration    time.Duration
	CreatedAt   time.Time
}

// AnalysisStats aggregates the history table.
type AnalysisStats struct {
	Total         int
	ByStatus      map[AnalysisStatus]int
	AvgDurationMS float64
	LastAt        *time.Time
}
