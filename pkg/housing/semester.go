package housing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type semesterTemplate struct {
	name       string
	startMonth time.Month
	startDay   int
	endMonth   time.Month
	endDay     int
}

var (
	semesterTemplates = []semesterTemplate{
		{name: "Spring", startMonth: time.January, startDay: 10, endMonth: time.June, endDay: 30},
		{name: "Fall", startMonth: time.July, startDay: 1, endMonth: time.December, endDay: 20},
	}
	semesterPattern = regexp.MustCompile(`^(Spring|Fall)\s+(\d{4})$`)
)

// ParseSemester converts a label such as "Spring 2025" into its booking range.
func ParseSemester(label string) (DateRange, error) {
	match := semesterPattern.FindStringSubmatch(strings.TrimSpace(label))
	if match == nil {
		return DateRange{}, fmt.Errorf("%w: %q", ErrInvalidSemester, label)
	}
	year, err := strconv.Atoi(match[2])
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: %q", ErrInvalidSemester, label)
	}
	for _, template := range semesterTemplates {
		if template.name != match[1] {
			continue
		}
		return NewDateRange(
			NewDate(year, template.startMonth, template.startDay),
			NewDate(year, template.endMonth, template.endDay),
		)
	}
	return DateRange{}, fmt.Errorf("%w: %q", ErrInvalidSemester, label)
}

// UpcomingSemesters lists count semester labels starting with the one in progress on today.
func UpcomingSemesters(today Date, count int) []string {
	if count <= 0 {
		return nil
	}
	labels := make([]string, 0, count)
	year := today.Time().Year()
	templateIndex := 0
	if today.Time().Month() >= semesterTemplates[1].startMonth {
		templateIndex = 1
	}
	for len(labels) < count {
		labels = append(labels, fmt.Sprintf("%s %d", semesterTemplates[templateIndex].name, year))
		templateIndex++
		if templateIndex >= len(semesterTemplates) {
			templateIndex = 0
			year++
		}
	}
	return labels
}
