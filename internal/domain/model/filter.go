package model

// RunFilter selects runs by equality on the populated fields.
// Nil pointers and empty strings do not constrain the result; a pointer to
// an empty string matches only runs where that field is empty.
type RunFilter struct {
	LeaderboardType LeaderboardType
	Category        *string
	Platform        *string
	RunType         RunType
	Level           *string
	Verified        *bool
	PlayerID        string
	Player2ID       string
}

// Matches reports whether run satisfies every populated constraint.
func (f RunFilter) Matches(run Run) bool {
	switch {
	case f.LeaderboardType != "" && run.LeaderboardType != f.LeaderboardType:
		return false
	case f.Category != nil && run.Category != *f.Category:
		return false
	case f.Platform != nil && run.Platform != *f.Platform:
		return false
	case f.RunType != "" && run.RunType != f.RunType:
		return false
	case f.Level != nil && run.Level != *f.Level:
		return false
	case f.Verified != nil && run.Verified != *f.Verified:
		return false
	case f.PlayerID != "" && run.PlayerID != f.PlayerID:
		return false
	case f.Player2ID != "" && run.Player2ID != f.Player2ID:
		return false
	}
	return true
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }
