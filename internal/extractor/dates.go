package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const dateLayout = "2006-01-02"

var (
	reISODate   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reOffset    = regexp.MustCompile(`^(?:in\s+)?(?:about\s+|around\s+)?(a|an|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|a couple of|a few|\d+)\s+(day|week|month)s?(?:\s+time)?(?:\s+from now)?$`)
	reWeekday   = regexp.MustCompile(`^(?:next|this|on|from)?\s*(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	numberWords = map[string]int{
		"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
		"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
		"a couple of": 2, "a few": 3,
	}
	weekdays = map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
		"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	}
)

// ResolveDate turns a start-date phrase into YYYY-MM-DD relative to ref.
// It understands ISO dates, "ASAP"-style phrases, "two weeks", "next
// Monday", "end of the month" and the absolute formats dateparse accepts.
func ResolveDate(phrase string, ref time.Time) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(phrase))
	s = strings.TrimSuffix(s, ".")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", false
	}

	if reISODate.MatchString(s) {
		if _, err := time.Parse(dateLayout, s); err != nil {
			return "", false
		}
		return s, true
	}

	ref = time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())

	switch s {
	case "asap", "as soon as possible", "immediately", "now", "right away", "straight away", "straightaway", "today", "available now":
		return ref.Format(dateLayout), true
	case "tomorrow":
		return ref.AddDate(0, 0, 1).Format(dateLayout), true
	case "next week":
		return ref.AddDate(0, 0, 7).Format(dateLayout), true
	case "fortnight", "a fortnight", "in a fortnight", "in two weeks' time":
		return ref.AddDate(0, 0, 14).Format(dateLayout), true
	case "next month":
		return ref.AddDate(0, 1, 0).Format(dateLayout), true
	case "end of the month", "end of month", "the end of the month":
		first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		return first.AddDate(0, 1, -1).Format(dateLayout), true
	}

	if m := reOffset.FindStringSubmatch(s); m != nil {
		n, ok := numberWords[m[1]]
		if !ok {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				return "", false
			}
			n = v
		}
		switch m[2] {
		case "day":
			return ref.AddDate(0, 0, n).Format(dateLayout), true
		case "week":
			return ref.AddDate(0, 0, 7*n).Format(dateLayout), true
		case "month":
			return ref.AddDate(0, n, 0).Format(dateLayout), true
		}
	}

	if m := reWeekday.FindStringSubmatch(s); m != nil {
		want := weekdays[m[1]]
		days := (int(want) - int(ref.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return ref.AddDate(0, 0, days).Format(dateLayout), true
	}

	if t, err := dateparse.ParseIn(phrase, ref.Location()); err == nil {
		return t.Format(dateLayout), true
	}

	return "", false
}
