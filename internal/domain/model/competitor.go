package model

import "strings"

type competitorKind uint8

const (
	competitorNone competitorKind = iota
	competitorRegistered
	competitorUnregistered
)

// CompetitorRef identifies who a run belongs to: either a registered player
// or a bare display name that no account has claimed yet.
type CompetitorRef struct {
	kind  competitorKind
	value string
}

// Registered references a player account.
func Registered(playerID string) CompetitorRef {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return CompetitorRef{}
	}
	return CompetitorRef{kind: competitorRegistered, value: playerID}
}

// Unregistered references a competitor known only by display name.
func Unregistered(displayName string) CompetitorRef {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return CompetitorRef{}
	}
	return CompetitorRef{kind: competitorUnregistered, value: displayName}
}

// IsZero reports whether the reference carries no identity at all.
func (c CompetitorRef) IsZero() bool { return c.kind == competitorNone }

// IsRegistered reports whether the reference points at a player account.
func (c CompetitorRef) IsRegistered() bool { return c.kind == competitorRegistered }

// PlayerID returns the player id for registered references.
func (c CompetitorRef) PlayerID() (string, bool) {
	if c.kind != competitorRegistered {
		return "", false
	}
	return c.value, true
}

// DisplayName returns the name for unregistered references.
func (c CompetitorRef) DisplayName() (string, bool) {
	if c.kind != competitorUnregistered {
		return "", false
	}
	return c.value, true
}

// Key returns the identity used to collapse runs of the same competitor.
// Display names compare case-insensitively.
func (c CompetitorRef) Key() string {
	switch c.kind {
	case competitorRegistered:
		return "player:" + c.value
	case competitorUnregistered:
		return "name:" + strings.ToLower(c.value)
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (c CompetitorRef) String() string {
	if c.IsZero() {
		return "<none>"
	}
	return c.Key()
}
