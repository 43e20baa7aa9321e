// Package grouping derives the comparison group a run competes in.
package grouping

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/runboard/internal/domain/model"
)

const keySeparator = "|"

// ErrMalformedKey is returned by ParseKey for strings not produced by Key.String.
var ErrMalformedKey = errors.New("malformed group key")

// Key identifies a set of directly comparable runs.
type Key struct {
	LeaderboardType model.LeaderboardType `json:"leaderboard_type"`
	Level           string                `json:"level,omitempty"`
	Category        string                `json:"category"`
	Platform        string                `json:"platform"`
	RunType         model.RunType         `json:"run_type"`
}

// KeyOf returns the group of run. The level only takes part for
// level-scoped leaderboard types; a missing level on such a run still
// yields a key, one that Complete reports as unusable.
func KeyOf(run model.Run) Key {
	k := Key{
		LeaderboardType: run.LeaderboardType,
		Category:        run.Category,
		Platform:        run.Platform,
		RunType:         run.RunType,
	}
	if run.LeaderboardType.LevelScoped() {
		k.Level = run.Level
	}
	return k
}

// Complete reports whether every component the leaderboard type needs is present.
func (k Key) Complete() bool {
	return !k.LeaderboardType.LevelScoped() || k.Level != ""
}

// Filter returns the store filter selecting every run of the group,
// verified or not. Empty components match only empty values.
func (k Key) Filter() model.RunFilter {
	f := model.RunFilter{
		LeaderboardType: k.LeaderboardType,
		Category:        model.StringPtr(k.Category),
		Platform:        model.StringPtr(k.Platform),
		RunType:         k.RunType,
	}
	if k.LeaderboardType.LevelScoped() {
		f.Level = model.StringPtr(k.Level)
	}
	return f
}

// Contains reports whether run belongs to the group.
func (k Key) Contains(run model.Run) bool {
	return KeyOf(run) == k
}

// String renders the key as "type|level|category|platform|runType".
func (k Key) String() string {
	return strings.Join([]string{
		string(k.LeaderboardType), k.Level, k.Category, k.Platform, string(k.RunType),
	}, keySeparator)
}

// ParseKey reverses Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, keySeparator)
	if len(parts) != 5 { //nolint:mnd // five key components
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	return Key{
		LeaderboardType: model.LeaderboardType(parts[0]),
		Level:           parts[1],
		Category:        parts[2],
		Platform:        parts[3],
		RunType:         model.RunType(parts[4]),
	}, nil
}

// Partition splits runs by group, preserving input order inside each group.
func Partition(runs []model.Run) map[Key][]model.Run {
	groups := make(map[Key][]model.Run)
	for _, r := range runs {
		k := KeyOf(r)
		groups[k] = append(groups[k], r)
	}
	return groups
}

// Sorted returns keys in ascending String order.
func Sorted(keys []Key) []Key {
	out := make([]Key, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Distinct returns the unique keys of runs in ascending String order.
func Distinct(runs []model.Run) []Key {
	seen := make(map[Key]struct{}, len(runs))
	keys := make([]Key, 0, len(runs))
	for _, r := range runs {
		k := KeyOf(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return Sorted(keys)
}
