// Package normalize coerces raw run records into canonical form and reports
// what is missing from them.
package normalize

import (
	"strings"
	"time"

	"github.com/okian/runboard/internal/domain/model"
)

// Normalize returns a best-effort canonical copy of run. It never fails:
// unknown enums fall back to their defaults, malformed times become
// 00:00:00 and malformed dates become the current day of now.
func Normalize(run model.Run, now time.Time) model.Run {
	out := run

	out.ID = strings.TrimSpace(run.ID)
	out.PlayerID = strings.TrimSpace(run.PlayerID)
	out.Player2ID = strings.TrimSpace(run.Player2ID)
	out.PlayerName = strings.TrimSpace(run.PlayerName)
	out.Player2Name = strings.TrimSpace(run.Player2Name)
	out.Category = strings.TrimSpace(run.Category)
	out.Platform = strings.TrimSpace(run.Platform)
	out.Level = strings.TrimSpace(run.Level)
	out.VerifiedBy = strings.TrimSpace(run.VerifiedBy)
	out.SRCRunID = strings.TrimSpace(run.SRCRunID)
	out.SRCCategoryName = strings.TrimSpace(run.SRCCategoryName)
	out.SRCPlatformName = strings.TrimSpace(run.SRCPlatformName)
	out.SRCLevelName = strings.TrimSpace(run.SRCLevelName)
	out.SRCPlayerName = strings.TrimSpace(run.SRCPlayerName)
	out.SRCPlayer2Name = strings.TrimSpace(run.SRCPlayer2Name)

	out.RunType = RunType(string(run.RunType))
	out.LeaderboardType = LeaderboardType(string(run.LeaderboardType))
	out.Time = Time(run.Time)
	out.Date = Date(run.Date, now)

	if out.Rank != nil && (*out.Rank < 1 || *out.Rank > 3) {
		out.Rank = nil
	}
	if out.Points < 0 {
		out.Points = 0
	}
	return out
}

// RunType maps s onto a known run type, defaulting to solo.
func RunType(s string) model.RunType {
	t := model.RunType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case model.RunTypeCoop, "coop":
		return model.RunTypeCoop
	default:
		return model.RunTypeSolo
	}
}

// LeaderboardType maps s onto a known leaderboard type, defaulting to regular.
func LeaderboardType(s string) model.LeaderboardType {
	t := model.LeaderboardType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return model.LeaderboardRegular
}

// Time returns s when it is a valid elapsed time, 00:00:00 otherwise.
func Time(s string) string {
	s = strings.TrimSpace(s)
	if model.ValidTime(s) {
		return s
	}
	return model.ZeroTime
}

// Date strips any time-of-day suffix from s and returns it when it is a valid
// calendar date, or today's date (UTC) otherwise.
func Date(s string, now time.Time) string {
	s = stripClock(s)
	if model.ValidDate(s) {
		return s
	}
	return model.Today(now)
}

func stripClock(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	return s
}
