package semantic

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/dshills/tripdesk-mcp/internal/matcher"
)

// The normalizer splits "2025-06-14" into "2025", "06", "14"; month and
// day parts are only read in that two-digit form.
var (
	yearToken  = regexp.MustCompile(`^(19|20)\d{2}$`)
	monthToken = regexp.MustCompile(`^(0[1-9]|1[0-2])$`)
	dayToken   = regexp.MustCompile(`^(0[1-9]|[12]\d|3[01])$`)
)

var seasons = map[string]time.Month{
	"spring": time.March,
	"summer": time.June,
	"fall":   time.September,
	"autumn": time.September,
	"winter": time.December,
}

// MonthKey formats the YYYY-MM date component value
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// YearKey formats the YYYY date component value
func YearKey(year int) string {
	return fmt.Sprintf("%04d", year)
}

// parseDatePhrase recognizes a date expression starting at tokens[i]. It
// returns the date component values it denotes and the number of tokens
// consumed, or zero when no expression starts there.
func parseDatePhrase(tokens []string, i int, now time.Time) ([]string, int) {
	tok := tokens[i]
	next := ""
	if i+1 < len(tokens) {
		next = tokens[i+1]
	}

	if yearToken.MatchString(tok) {
		if !monthToken.MatchString(next) {
			return []string{tok}, 1
		}
		value := tok + "-" + next
		if i+2 < len(tokens) && dayToken.MatchString(tokens[i+2]) {
			return []string{value}, 3
		}
		return []string{value}, 2
	}

	if offset, ok := relativeOffsets[tok]; ok && next != "" {
		switch next {
		case "month":
			m := firstOfMonth(now).AddDate(0, offset, 0)
			return []string{MonthKey(m.Year(), m.Month())}, 2
		case "year":
			return []string{YearKey(now.Year() + offset)}, 2
		}
		if start, ok := seasons[next]; ok {
			return seasonMonths(start, seasonYear(start, now)+offset), 2
		}
		if m, ok := matcher.Months[next]; ok {
			month := time.Month(m)
			year := now.Year()
			switch {
			case offset > 0 && month <= now.Month():
				year++
			case offset < 0 && month >= now.Month():
				year--
			}
			return []string{MonthKey(year, month)}, 2
		}
	}

	if start, ok := seasons[tok]; ok {
		if year, ok := explicitYear(next); ok {
			return seasonMonths(start, year), 2
		}
		return seasonMonths(start, seasonYear(start, now)), 1
	}

	if month, ok := matcher.Months[tok]; ok {
		if year, ok := explicitYear(next); ok {
			return []string{MonthKey(year, time.Month(month))}, 2
		}
		// "may" is also a common verb; only treat it as a month with a year
		if tok == "may" {
			return nil, 0
		}
		return []string{MonthKey(upcomingYear(time.Month(month), now), time.Month(month))}, 1
	}

	if tok == "christmas" || tok == "xmas" {
		return []string{MonthKey(now.Year(), time.December)}, 1
	}
	return nil, 0
}

var relativeOffsets = map[string]int{"last": -1, "this": 0, "next": 1}

func explicitYear(tok string) (int, bool) {
	if !yearToken.MatchString(tok) {
		return 0, false
	}
	year, err := strconv.Atoi(tok)
	return year, err == nil
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// upcomingYear is the year of the next occurrence of month, counting the
// current month as upcoming
func upcomingYear(month time.Month, now time.Time) int {
	if month < now.Month() {
		return now.Year() + 1
	}
	return now.Year()
}

// seasonYear is the year the current or next occurrence of a season starts
func seasonYear(start time.Month, now time.Time) int {
	year := now.Year()
	if start == time.December {
		// January and February belong to the winter that began last December
		if now.Month() <= time.February {
			return year - 1
		}
		return year
	}
	if now.Month() > start+2 {
		return year + 1
	}
	return year
}

// seasonMonths lists the three month keys of a season starting in year
func seasonMonths(start time.Month, year int) []string {
	first := time.Date(year, start, 1, 0, 0, 0, 0, time.UTC)
	keys := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		m := first.AddDate(0, i, 0)
		keys = append(keys, MonthKey(m.Year(), m.Month()))
	}
	return keys
}
