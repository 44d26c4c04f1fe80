package housing

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "2025-01-10", want: "2025-01-10"},
		{name: "trimmed", input: "  2025-12-20 ", want: "2025-12-20"},
		{name: "empty", input: "", wantErr: true},
		{name: "time of day", input: "2025-01-10T10:00:00Z", wantErr: true},
		{name: "impossible day", input: "2025-02-30", wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDate(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Fatalf("expected invalid date, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDateOfDropsTimeOfDay(t *testing.T) {
	t.Parallel()
	evening := time.Date(2025, time.March, 3, 23, 59, 0, 0, time.UTC)
	if !DateOf(evening).Equal(NewDate(2025, time.March, 3)) {
		t.Fatalf("expected calendar date, got %s", DateOf(evening))
	}
	if got := DateFromUnix(evening.Unix()).String(); got != "2025-03-03" {
		t.Fatalf("expected 2025-03-03, got %s", got)
	}
}

func TestNewDateRangeRequiresStartBeforeEnd(t *testing.T) {
	t.Parallel()
	day := NewDate(2025, time.January, 10)
	if _, err := NewDateRange(day, day); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected same-day range to be rejected, got %v", err)
	}
	if _, err := NewDateRange(day, day.AddDays(-1)); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected reversed range to be rejected, got %v", err)
	}
	if _, err := NewDateRange(Date{}, day); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected missing start to be rejected, got %v", err)
	}
	if _, err := ParseDateRange("2025-01-10", "nope"); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected unparseable end to be rejected, got %v", err)
	}
	dateRange, err := NewDateRange(day, day.AddDays(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dateRange.String() != "2025-01-10..2025-01-11" {
		t.Fatalf("unexpected range string %s", dateRange)
	}
}

func TestDateRangeOverlapsIsClosedAndSymmetric(t *testing.T) {
	t.Parallel()
	base := mustRange(t, "2025-01-10", "2025-01-20")
	cases := []struct {
		start string
		end   string
		want  bool
	}{
		{start: "2025-01-01", end: "2025-01-09", want: false},
		{start: "2025-01-01", end: "2025-01-10", want: true},
		{start: "2025-01-12", end: "2025-01-15", want: true},
		{start: "2025-01-20", end: "2025-01-25", want: true},
		{start: "2025-01-21", end: "2025-01-25", want: false},
		{start: "2024-12-01", end: "2025-02-01", want: true},
	}
	for _, tc := range cases {
		other := mustRange(t, tc.start, tc.end)
		if base.Overlaps(other) != tc.want || other.Overlaps(base) != tc.want {
			t.Fatalf("overlap %s vs %s: expected %v", base, other, tc.want)
		}
	}
}
