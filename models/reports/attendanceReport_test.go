package reports

import (
	"testing"
	"time"
)

func TestDurationHours(t *testing.T) {
	in := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	out := in.Add(4*time.Hour + 30*time.Minute)

	row := &AttendanceReportRow{CheckInTime: in, CheckOutTime: &out}
	if got := row.DurationHours(); got != 4.5 {
		t.Fatalf("DurationHours() = %v, expected 4.5", got)
	}

	// Open sessions count up to business-now; a past check-in must report
	// positive elapsed time.
	open := &AttendanceReportRow{CheckInTime: time.Now().UTC().Add(-2 * time.Hour)}
	if got := open.DurationHours(); got <= 2 {
		t.Fatalf("open session DurationHours() = %v, expected > 2", got)
	}
}

func TestRemainingHours(t *testing.T) {
	in := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

	short := in.Add(4 * time.Hour)
	row := &AttendanceReportRow{CheckInTime: in, CheckOutTime: &short}
	if got := row.RemainingHours(); got != 5.0 {
		t.Fatalf("RemainingHours() = %v, expected 5.0", got)
	}

	long := in.Add(11 * time.Hour)
	row = &AttendanceReportRow{CheckInTime: in, CheckOutTime: &long}
	if got := row.RemainingHours(); got != 0 {
		t.Fatalf("overworked RemainingHours() = %v, expected 0", got)
	}
}
