package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/bizledger/api/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func TestHealthReportFillsDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{Healthy: true, Environment: "test"}},
		Clock:            func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("health report: %v", err)
	}
	if !report.Healthy {
		t.Fatalf("expected healthy report")
	}
	if !report.CheckedAt.Equal(now) {
		t.Fatalf("expected CheckedAt defaulted to clock, got %s", report.CheckedAt)
	}
	if report.Components == nil {
		t.Fatalf("expected components map initialised")
	}
}

func TestHealthReportPropagatesFailure(t *testing.T) {
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{err: errors.New("probe failed")},
	})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}
	if _, err := svc.HealthReport(context.Background()); err == nil {
		t.Fatalf("expected error from failing collector")
	}
}
