package ranking

import (
	"slices"

	"github.com/okian/runboard/internal/domain/model"
)

// PodiumSize is the number of positions that keep a persisted rank.
const PodiumSize = 3

// Placement is a contender's position in its group.
type Placement struct {
	Run      model.Run
	Position int
	// Rank is the persisted rank: Position for the podium, nil beyond it.
	Rank *int
}

// Rank orders contenders ascending by elapsed time and assigns 1-based
// positions. Callers pass the Contenders of a Reduction.
func Rank(contenders []model.Run) []Placement {
	sorted := slices.Clone(contenders)
	slices.SortFunc(sorted, Compare)

	placements := make([]Placement, len(sorted))
	for i, r := range sorted {
		pos := i + 1
		p := Placement{Run: r, Position: pos}
		if pos <= PodiumSize {
			p.Rank = model.IntPtr(pos)
		}
		placements[i] = p
	}
	return placements
}

// Assign reduces and ranks a group, returning the persisted rank of every
// input run by id. Runs that are not on the podium map to nil.
func Assign(runs []model.Run) map[string]*int {
	ranks := make(map[string]*int, len(runs))
	for _, r := range runs {
		ranks[r.ID] = nil
	}
	for _, p := range Rank(Reduce(runs).Contenders) {
		ranks[p.Run.ID] = p.Rank
	}
	return ranks
}

// Standings returns the full positional board of a group, podium and beyond.
func Standings(runs []model.Run) []Placement {
	return Rank(Reduce(runs).Contenders)
}
