// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// RunType tells whether a run was played alone or with a partner.
type RunType string

// Run types.
const (
	RunTypeSolo RunType = "solo"
	RunTypeCoop RunType = "co-op"
)

// Valid reports whether t is one of the known run types.
func (t RunType) Valid() bool {
	return t == RunTypeSolo || t == RunTypeCoop
}

// LeaderboardType selects the set of categories a run competes in.
type LeaderboardType string

// Leaderboard types.
const (
	LeaderboardRegular         LeaderboardType = "regular"
	LeaderboardIndividualLevel LeaderboardType = "individual-level"
	LeaderboardCommunityGolds  LeaderboardType = "community-golds"
)

// LeaderboardTypes lists every leaderboard type in a stable order.
var LeaderboardTypes = []LeaderboardType{ //nolint:gochecknoglobals // read-only enumeration
	LeaderboardRegular,
	LeaderboardIndividualLevel,
	LeaderboardCommunityGolds,
}

// Valid reports whether t is one of the known leaderboard types.
func (t LeaderboardType) Valid() bool {
	switch t {
	case LeaderboardRegular, LeaderboardIndividualLevel, LeaderboardCommunityGolds:
		return true
	default:
		return false
	}
}

// LevelScoped reports whether runs of this type are grouped per level.
func (t LeaderboardType) LevelScoped() bool {
	return t == LeaderboardIndividualLevel || t == LeaderboardCommunityGolds
}

// Run is a single submitted speedrun attempt.
type Run struct {
	ID string `json:"id"`

	PlayerID    string `json:"player_id,omitempty"`
	Player2ID   string `json:"player2_id,omitempty"`
	PlayerName  string `json:"player_name"`
	Player2Name string `json:"player2_name,omitempty"`

	Category string `json:"category"`
	Platform string `json:"platform"`
	Level    string `json:"level,omitempty"`

	RunType         RunType         `json:"run_type"`
	LeaderboardType LeaderboardType `json:"leaderboard_type"`

	Time string `json:"time"` // H:MM:SS or HH:MM:SS
	Date string `json:"date"` // YYYY-MM-DD, the day the run was played

	Verified   bool   `json:"verified"`
	VerifiedBy string `json:"verified_by,omitempty"`
	IsObsolete bool   `json:"is_obsolete"`

	// Rank and Points are derived caches; the group is the source of truth.
	Rank   *int `json:"rank,omitempty"`
	Points int  `json:"points"`

	ImportedFromSRC bool   `json:"imported_from_src,omitempty"`
	SRCRunID        string `json:"src_run_id,omitempty"`
	SRCCategoryName string `json:"src_category_name,omitempty"`
	SRCPlatformName string `json:"src_platform_name,omitempty"`
	SRCLevelName    string `json:"src_level_name,omitempty"`
	SRCPlayerName   string `json:"src_player_name,omitempty"`
	SRCPlayer2Name  string `json:"src_player2_name,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
}

// Seconds returns the elapsed time in whole seconds, 0 when Time is malformed.
func (r Run) Seconds() int {
	return ParseTime(r.Time)
}

// IsCoop reports whether the run was played by two competitors.
func (r Run) IsCoop() bool {
	return r.RunType == RunTypeCoop
}

// Competitor returns the reference for the first competitor.
func (r Run) Competitor() CompetitorRef {
	return refFor(r.PlayerID, r.PlayerName, r.SRCPlayerName)
}

// Partner returns the reference for the second competitor of a co-op run.
// Solo runs have no partner and yield the zero reference.
func (r Run) Partner() CompetitorRef {
	if !r.IsCoop() {
		return CompetitorRef{}
	}
	return refFor(r.Player2ID, r.Player2Name, r.SRCPlayer2Name)
}

// Competitors returns every non-zero competitor reference of the run.
func (r Run) Competitors() []CompetitorRef {
	refs := make([]CompetitorRef, 0, 2)
	if c := r.Competitor(); !c.IsZero() {
		refs = append(refs, c)
	}
	if p := r.Partner(); !p.IsZero() {
		refs = append(refs, p)
	}
	return refs
}

// PlayerIDs returns the registered players that compete in the run.
func (r Run) PlayerIDs() []string {
	var ids []string
	for _, c := range r.Competitors() {
		if id, ok := c.PlayerID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Claimed reports whether at least one competitor resolves to a registered player.
func (r Run) Claimed() bool {
	return len(r.PlayerIDs()) > 0
}

// HasPlayer reports whether playerID competes in the run. Only co-op runs
// are considered for the second slot.
func (r Run) HasPlayer(playerID string) bool {
	if playerID == "" {
		return false
	}
	if r.PlayerID == playerID {
		return true
	}
	return r.IsCoop() && r.Player2ID == playerID
}

// RankValue returns the cached rank or 0 when the run holds no podium rank.
func (r Run) RankValue() int {
	if r.Rank == nil {
		return 0
	}
	return *r.Rank
}

func refFor(id, name, fallback string) CompetitorRef {
	if id = strings.TrimSpace(id); id != "" {
		return Registered(id)
	}
	if name = strings.TrimSpace(name); name != "" {
		return Unregistered(name)
	}
	return Unregistered(fallback)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// SameRank reports whether two optional ranks hold the same value.
func SameRank(a, b *int) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return *a == *b
	}
}
