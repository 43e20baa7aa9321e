package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ZeroTime is the canonical time of a run whose elapsed time could not be read.
const ZeroTime = "00:00:00"

// DateLayout is the canonical calendar date format of a run.
const DateLayout = "2006-01-02"

var (
	timePattern = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}$`)
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ValidTime reports whether s is a canonical elapsed-time string.
func ValidTime(s string) bool {
	return timePattern.MatchString(s)
}

// ValidDate reports whether s is a canonical calendar date.
func ValidDate(s string) bool {
	return datePattern.MatchString(s)
}

// ParseTime converts "H:MM:SS" or "HH:MM:SS" into total seconds.
// Malformed input yields 0.
func ParseTime(s string) int {
	s = strings.TrimSpace(s)
	if !ValidTime(s) {
		return 0
	}
	parts := strings.Split(s, ":")
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	sec, _ := strconv.Atoi(parts[2])
	return h*3600 + m*60 + sec
}

// FormatSeconds renders total seconds in the canonical HH:MM:SS form.
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Today returns the canonical date for t in UTC.
func Today(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
