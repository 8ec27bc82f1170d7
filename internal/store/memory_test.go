package store

import (
	"errors"
	"testing"
	"time"

	"github.com/satdata/tracegas-aggregation/internal/tracegas"
)

func result(field string, at time.Time) *tracegas.GriddedResult {
	return &tracegas.GriddedResult{
		Field:       field,
		GeneratedAt: at,
	}
}

func TestMemoryStoreLatest(t *testing.T) {
	s := NewMemoryStore(10, 0)
	now := time.Now().UTC()

	if _, err := s.Latest("ColumnAmountNO2Trop"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	s.Save(result("ColumnAmountNO2Trop", now.Add(-time.Hour)))
	s.Save(result("ColumnAmountNO2Trop", now))
	s.Save(result("ColumnAmountSO2", now))

	latest, err := s.Latest("ColumnAmountNO2Trop")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !latest.GeneratedAt.Equal(now) {
		t.Errorf("expected most recent result, got %v", latest.GeneratedAt)
	}
}

func TestMemoryStoreRange(t *testing.T) {
	s := NewMemoryStore(10, 0)
	base := time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC)

	for d := 0; d < 5; d++ {
		s.Save(result("ColumnAmountNO2Trop", base.AddDate(0, 0, d)))
	}

	got, err := s.Range("ColumnAmountNO2Trop", base.AddDate(0, 0, 1), base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}

	if _, err := s.Range("ColumnAmountNO2Trop", base.AddDate(0, 0, 10), base.AddDate(0, 0, 20)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty window, got %v", err)
	}
}

func TestMemoryStoreRetentionByCount(t *testing.T) {
	s := NewMemoryStore(2, 0)
	base := time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC)

	for d := 0; d < 4; d++ {
		s.Save(result("ColumnAmountNO2Trop", base.AddDate(0, 0, d)))
	}

	got, err := s.Range("ColumnAmountNO2Trop", base, base.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected retention to keep 2 results, got %d", len(got))
	}
	if !got[0].GeneratedAt.Equal(base.AddDate(0, 0, 2)) {
		t.Errorf("expected oldest results to be dropped first, kept %v", got[0].GeneratedAt)
	}
}

func TestMemoryStoreRetentionByAge(t *testing.T) {
	s := NewMemoryStore(0, time.Hour)
	now := time.Now().UTC()

	s.Save(result("ColumnAmountNO2Trop", now.Add(-2*time.Hour)))
	s.Save(result("ColumnAmountNO2Trop", now))

	got, err := s.Range("ColumnAmountNO2Trop", now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected stale result to be dropped, got %d results", len(got))
	}
}
