package scheduler

import (
	"testing"
	"time"

	"github.com/shaiso/autopkg/internal/domain"
)

func TestCalculateNextDue(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 3 * * *", // каждый день в 03:00
		Timezone: "UTC",
	}

	from := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("calculate next due: %v", err)
	}

	want := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCalculateNextDueRespectsTimezone(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 3 * * *",
		Timezone: "Africa/Kampala", // UTC+3, без DST
	}

	from := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("calculate next due: %v", err)
	}

	// 03:00 в Кампале = 00:00 UTC
	want := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCalculateNextDueInvalidTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "30 * * * *",
		Timezone: "Not/AZone",
	}

	from := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("calculate next due: %v", err)
	}

	want := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCalculateNextDueInvalidExpr(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "not a cron",
		Timezone: "UTC",
	}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Error("invalid expression should fail")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("*/15 * * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("61 * * * *"); err == nil {
		t.Error("out-of-range minute should fail")
	}
	if err := ValidateCronExpr(""); err == nil {
		t.Error("empty expression should fail")
	}
}
