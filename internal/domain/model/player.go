package model

import "strings"

// Player is a registered account that can own runs.
type Player struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	NameColor   string `json:"name_color,omitempty"`

	// SRCUsername is the player's identity on the external speedrunning
	// registry. Imported runs are claimed by matching against it.
	SRCUsername string `json:"src_username,omitempty"`

	// TotalPoints and TotalRuns are derived caches maintained by recomputation.
	TotalPoints int `json:"total_points"`
	TotalRuns   int `json:"total_runs"`
}

// MatchesIdentity reports whether name equals the player's external identity,
// ignoring case and surrounding whitespace.
func (p Player) MatchesIdentity(name string) bool {
	id := strings.TrimSpace(p.SRCUsername)
	name = strings.TrimSpace(name)
	return id != "" && name != "" && strings.EqualFold(id, name)
}
