// Package ranking collapses a group to one run per competitor and orders
// the survivors by elapsed time.
package ranking

import (
	"cmp"
	"slices"
	"strings"

	"github.com/okian/runboard/internal/domain/model"
)

// Reduction is the outcome of collapsing a group.
type Reduction struct {
	// Contenders holds the fastest eligible run of every competitor.
	Contenders []model.Run
	// Obsolete holds verified runs flagged as superseded.
	Obsolete []model.Run
	// Superseded holds slower eligible runs of competitors already represented.
	Superseded []model.Run
	// Unverified holds runs that were dropped before ranking.
	Unverified []model.Run
}

// Reduce collapses runs of a single group into one contender per competitor
// (or competitor pair for co-op runs), keeping the fastest.
func Reduce(runs []model.Run) Reduction {
	var red Reduction
	best := make(map[string]model.Run)
	order := make([]string, 0, len(runs))

	for _, r := range runs {
		switch {
		case !r.Verified:
			red.Unverified = append(red.Unverified, r)
			continue
		case r.IsObsolete:
			red.Obsolete = append(red.Obsolete, r)
			continue
		}

		key := CompetitorKey(r)
		cur, ok := best[key]
		if !ok {
			best[key] = r
			order = append(order, key)
			continue
		}
		if Compare(r, cur) < 0 {
			best[key] = r
			red.Superseded = append(red.Superseded, cur)
		} else {
			red.Superseded = append(red.Superseded, r)
		}
	}

	red.Contenders = make([]model.Run, 0, len(order))
	for _, key := range order {
		red.Contenders = append(red.Contenders, best[key])
	}
	return red
}

// CompetitorKey identifies who a run counts for. Co-op pairs are ordered so
// swapping partners yields the same key. Runs without any competitor
// identity only compete with themselves.
func CompetitorKey(r model.Run) string {
	first := r.Competitor().Key()
	if r.IsCoop() {
		keys := []string{first, r.Partner().Key()}
		slices.Sort(keys)
		if keys[0] == "" && keys[1] == "" {
			return "run:" + r.ID
		}
		return strings.Join(keys, "+")
	}
	if first == "" {
		return "run:" + r.ID
	}
	return first
}

// Compare orders runs by elapsed seconds, then by date, then by id.
func Compare(a, b model.Run) int {
	if c := cmp.Compare(a.Seconds(), b.Seconds()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Date, b.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
