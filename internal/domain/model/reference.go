package model

// ReferenceKind names the kind of a reference entity.
type ReferenceKind string

// Reference kinds.
const (
	KindCategory ReferenceKind = "category"
	KindPlatform ReferenceKind = "platform"
	KindLevel    ReferenceKind = "level"
)

// Valid reports whether k is a known reference kind.
func (k ReferenceKind) Valid() bool {
	return k == KindCategory || k == KindPlatform || k == KindLevel
}

// Reference is a category, platform or level that runs point at by id.
type Reference struct {
	Kind ReferenceKind `json:"kind"`
	ID   string        `json:"id"`
	Name string        `json:"name"`

	// BonusThresholdSeconds enables the time bonus for categories: runs at
	// or under this many seconds earn PointsConfig.ThresholdBonus. 0 disables it.
	BonusThresholdSeconds int `json:"bonus_threshold_seconds,omitempty"`
}
