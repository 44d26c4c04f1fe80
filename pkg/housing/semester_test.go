package housing

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestParseSemester(t *testing.T) {
	t.Parallel()
	spring, err := ParseSemester("Spring 2025")
	if err != nil {
		t.Fatalf("spring: %v", err)
	}
	if spring.String() != "2025-01-10..2025-06-30" {
		t.Fatalf("unexpected spring range %s", spring)
	}
	fall, err := ParseSemester(" Fall 2026 ")
	if err != nil {
		t.Fatalf("fall: %v", err)
	}
	if fall.String() != "2026-07-01..2026-12-20" {
		t.Fatalf("unexpected fall range %s", fall)
	}
	for _, label := range []string{"", "Summer 2025", "spring 2025", "Fall", "Fall 25"} {
		if _, err := ParseSemester(label); !errors.Is(err, ErrInvalidSemester) {
			t.Fatalf("label %q: expected invalid semester, got %v", label, err)
		}
	}
}

func TestUpcomingSemesters(t *testing.T) {
	t.Parallel()
	got := UpcomingSemesters(NewDate(2025, time.March, 1), 3)
	want := []string{"Spring 2025", "Fall 2025", "Spring 2026"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	got = UpcomingSemesters(NewDate(2025, time.August, 1), 2)
	want = []string{"Fall 2025", "Spring 2026"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if UpcomingSemesters(NewDate(2025, time.August, 1), 0) != nil {
		t.Fatalf("expected nil for zero count")
	}
}
