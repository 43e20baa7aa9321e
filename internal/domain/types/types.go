// Package types contains the read models served to clients.
package types

import (
	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/ranking"
)

// Standing is one row of a leaderboard.
type Standing struct {
	Position    int      `json:"position"`
	Rank        *int     `json:"rank,omitempty"`
	RunID       string   `json:"run_id"`
	Competitors []string `json:"competitors"`
	PlayerIDs   []string `json:"player_ids,omitempty"`
	Time        string   `json:"time"`
	Date        string   `json:"date"`
	Points      int      `json:"points"`
}

// Board is the full positional leaderboard of a group.
type Board struct {
	Key       grouping.Key `json:"key"`
	Standings []Standing   `json:"standings"`
}

// PlayerProfile is a player with the runs they compete in.
type PlayerProfile struct {
	Player model.Player `json:"player"`
	Runs   []model.Run  `json:"runs"`
}

// BoardOf ranks runs of one group into a board. Registered competitors are
// shown under their current display name from names, falling back to the
// name stored on the run.
func BoardOf(key grouping.Key, runs []model.Run, names map[string]string) Board {
	board := Board{Key: key, Standings: []Standing{}}
	for _, p := range ranking.Standings(runs) {
		board.Standings = append(board.Standings, Standing{
			Position:    p.Position,
			Rank:        p.Rank,
			RunID:       p.Run.ID,
			Competitors: DisplayNames(p.Run, names),
			PlayerIDs:   p.Run.PlayerIDs(),
			Time:        p.Run.Time,
			Date:        p.Run.Date,
			Points:      p.Run.Points,
		})
	}
	return board
}

// DisplayNames resolves the names of a run's competitors.
func DisplayNames(run model.Run, names map[string]string) []string {
	slots := []struct {
		ref  model.CompetitorRef
		name string
	}{
		{run.Competitor(), run.PlayerName},
		{run.Partner(), run.Player2Name},
	}

	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if s.ref.IsZero() {
			continue
		}
		id, registered := s.ref.PlayerID()
		switch {
		case !registered:
			n, _ := s.ref.DisplayName()
			out = append(out, n)
		case names[id] != "":
			out = append(out, names[id])
		case s.name != "":
			out = append(out, s.name)
		default:
			out = append(out, id)
		}
	}
	return out
}
