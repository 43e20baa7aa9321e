package aggregate

import (
	"slices"

	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/model"
)

// BatchResult summarizes a chunked write.
type BatchResult struct {
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// Result reports a player recompute.
type Result struct {
	PlayerID    string      `json:"player_id"`
	TotalPoints int         `json:"total_points"`
	TotalRuns   int         `json:"total_runs"`
	Batch       BatchResult `json:"batch"`
	// Skipped holds the player's runs in groups that could not be re-ranked.
	Skipped []string `json:"skipped,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	// Affected holds other players whose cached standings were rewritten.
	Affected []string `json:"affected,omitempty"`
	// Inconsistent holds runs whose group cannot be determined.
	Inconsistent []string `json:"inconsistent,omitempty"`
}

// Err returns a *model.PartialBatchFailure when any run or group failed.
func (r Result) Err() error {
	return partial(r.Batch, r.Skipped, r.Errors)
}

// GroupResult reports a single group re-rank.
type GroupResult struct {
	Key        grouping.Key `json:"key"`
	Contenders int          `json:"contenders"`
	Batch      BatchResult  `json:"batch"`
	Affected   []string     `json:"affected,omitempty"`
}

// Err returns a *model.PartialBatchFailure when any write failed.
func (r GroupResult) Err() error {
	return partial(r.Batch, nil, nil)
}

func partial(b BatchResult, skipped, errs []string) error {
	if len(b.Failed) == 0 && len(b.Errors) == 0 && len(skipped) == 0 && len(errs) == 0 {
		return nil
	}
	return &model.PartialBatchFailure{
		Updated: b.Updated,
		Failed:  slices.Concat(b.Failed, skipped),
		Errors:  slices.Concat(b.Errors, errs),
	}
}
