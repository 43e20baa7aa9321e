package jobs

import (
	"time"

	"github.com/riverqueue/river"
)

// KindRecomputePlayer identifies recompute jobs in the river_job table.
const KindRecomputePlayer = "recompute_player"

// RecomputePlayerArgs asks for one player's totals to be rebuilt.
// FollowUp marks a job inserted because an identical one was already
// running when the request came in. Reason is informational and takes no
// part in uniqueness.
type RecomputePlayerArgs struct {
	PlayerID string `json:"player_id" river:"unique"`
	FollowUp bool   `json:"follow_up,omitempty" river:"unique"`
	Reason   string `json:"reason,omitempty"`
}

// Kind returns the job type identifier for River.
func (RecomputePlayerArgs) Kind() string { return KindRecomputePlayer }

// InsertOpts makes jobs unique by player so bursts of changes coalesce.
func (RecomputePlayerArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueRecompute,
		MaxAttempts: defaultMaxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	}
}

const (
	// QueueRecompute is the River queue recompute jobs run on.
	QueueRecompute     = "recompute"
	defaultMaxAttempts = 5
	followUpDelay      = 100 * time.Millisecond
)
