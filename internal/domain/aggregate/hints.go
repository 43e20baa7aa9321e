package aggregate

import (
	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/model"
)

// Hint adjusts a single Recompute or RankGroup call.
type Hint func(*hintSet)

type hintSet struct {
	pinned map[string]model.Run
	order  []string
	groups []grouping.Key
}

// WithPinned makes the given runs authoritative over whatever the store
// returns for the same ids, so a write the caller just made is always seen.
func WithPinned(runs ...model.Run) Hint {
	return func(h *hintSet) {
		if h.pinned == nil {
			h.pinned = make(map[string]model.Run, len(runs))
		}
		for _, r := range runs {
			if _, ok := h.pinned[r.ID]; !ok {
				h.order = append(h.order, r.ID)
			}
			h.pinned[r.ID] = r
		}
	}
}

// WithGroup adds groups to re-rank even when the player has no run left in
// them, e.g. after a run was deleted or moved.
func WithGroup(keys ...grouping.Key) Hint {
	return func(h *hintSet) {
		h.groups = append(h.groups, keys...)
	}
}

func collect(hints []Hint) hintSet {
	var h hintSet
	for _, hint := range hints {
		hint(&h)
	}
	return h
}

// pin replaces store copies of pinned runs, drops pinned runs that no
// longer satisfy filter and adds pinned runs the store did not return yet.
func (h hintSet) pin(runs []model.Run, filter model.RunFilter) []model.Run {
	if len(h.pinned) == 0 {
		return runs
	}

	out := make([]model.Run, 0, len(runs)+len(h.pinned))
	seen := make(map[string]bool, len(h.pinned))
	for _, r := range runs {
		p, ok := h.pinned[r.ID]
		if !ok {
			out = append(out, r)
			continue
		}
		seen[r.ID] = true
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	for _, id := range h.order {
		if p := h.pinned[id]; !seen[id] && filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// pinnedGroups returns the groups of the pinned runs.
func (h hintSet) pinnedGroups() []grouping.Key {
	keys := make([]grouping.Key, 0, len(h.order))
	for _, id := range h.order {
		keys = append(keys, grouping.KeyOf(h.pinned[id]))
	}
	return keys
}
