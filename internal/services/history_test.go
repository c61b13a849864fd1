package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rash-identifier/internal/db"
	"rash-identifier/internal/models"
)

func openTestDB(t *testing.T) *HistoryService {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewHistoryService(conn)
}

func TestHistoryRecordAndRecent(t *testing.T) {
	svc := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []models.Analysis{
		{ID: "a", SessionID: "s1", Provider: "gemini", Model: "gemini-1.5-flash", ImageMIME: "image/png", ImageBytes: 10, Status: models.StatusOK, ResultChars: 400, Duration: 1200 * time.Millisecond, CreatedAt: base},
		{ID: "b", SessionID: "s1", Provider: "gemini", Status: models.StatusError, Error: "network down", Duration: 300 * time.Millisecond, CreatedAt: base.Add(time.Minute)},
		{ID: "c", SessionID: "s2", Provider: "openai", Status: models.StatusCancelled, Duration: 100 * time.Millisecond, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, rec := range records {
		if err := svc.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%s) failed: %v", rec.ID, err)
		}
	}

	recent, err := svc.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].ID != "c" || recent[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", recent[0].ID, recent[1].ID)
	}
	if recent[1].Error != "network down" || recent[1].Status != models.StatusError {
		t.Errorf("unexpected record: %+v", recent[1])
	}
	if recent[1].Duration != 300*time.Millisecond {
		t.Errorf("duration = %s", recent[1].Duration)
	}
	if !recent[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("created_at = %s", recent[0].CreatedAt)
	}
}

func TestHistoryStats(t *testing.T) {
	svc := openTestDB(t)
	ctx := context.Background()

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats on empty table failed: %v", err)
	}
	if stats.Total != 0 || stats.LastAt != nil {
		t.Errorf("unexpected empty stats: %+v", stats)
	}

	for i, status := range []models.AnalysisStatus{models.StatusOK, models.StatusOK, models.StatusTimeout} {
		rec := models.Analysis{
			ID:        string(rune('a' + i)),
			SessionID: "s",
			Provider:  "gemini",
			Status:    status,
			Duration:  time.Duration(i+1) * time.Second,
		}
		if err := svc.Record(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	stats, err = svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d", stats.Total)
	}
	if stats.ByStatus[models.StatusOK] != 2 || stats.ByStatus[models.StatusTimeout] != 1 {
		t.Errorf("ByStatus = %v", stats.ByStatus)
	}
	if stats.AvgDurationMS != 2000 {
		t.Errorf("AvgDurationMS = %v", stats.AvgDurationMS)
	}
	if stats.LastAt == nil {
		t.Error("expected LastAt to be set")
	}
}

func TestHistoryRejectsUnknownStatus(t *testing.T) {
	svc := openTestDB(t)
	err := svc.Record(context.Background(), models.Analysis{ID: "x", SessionID: "s", Provider: "p", Status: "weird"})
	if err == nil {
		t.Fatal("expected the status check constraint to reject the row")
	}
}
