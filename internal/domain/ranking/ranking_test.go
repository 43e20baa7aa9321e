package ranking_test

import (
	"testing"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/ranking"
	"github.com/okian/runboard/internal/seed"
	. "github.com/smartystreets/goconvey/convey"
)

func run(id, player, tm string) model.Run {
	return model.Run{
		ID: id, PlayerName: player, Time: tm, Date: "2024-01-01",
		Category: "any", Platform: "pc",
		RunType: model.RunTypeSolo, LeaderboardType: model.LeaderboardRegular,
		Verified: true,
	}
}

func TestReduce(t *testing.T) {
	Convey("Given a group with repeat competitors", t, func() {
		runs := []model.Run{
			run("a1", "Alice", "00:10:00"),
			run("a2", "alice", "00:09:30"),
			run("b1", "Bob", "00:09:45"),
			run("c1", "Carol", "00:08:00"),
		}
		runs[3].Verified = false

		Convey("When the group is reduced", func() {
			red := ranking.Reduce(runs)

			Convey("Then unverified runs are dropped", func() {
				So(red.Unverified, ShouldHaveLength, 1)
				So(red.Unverified[0].ID, ShouldEqual, "c1")
			})

			Convey("Then names compare case-insensitively and the fastest is kept", func() {
				So(red.Contenders, ShouldHaveLength, 2)
				ids := []string{red.Contenders[0].ID, red.Contenders[1].ID}
				So(ids, ShouldContain, "a2")
				So(ids, ShouldContain, "b1")
				So(red.Superseded, ShouldHaveLength, 1)
				So(red.Superseded[0].ID, ShouldEqual, "a1")
			})
		})

		Convey("When a run is obsolete", func() {
			runs[1].IsObsolete = true
			red := ranking.Reduce(runs)

			Convey("Then it is excluded and the next best run represents the competitor", func() {
				So(red.Obsolete, ShouldHaveLength, 1)
				So(red.Obsolete[0].ID, ShouldEqual, "a2")
				ids := []string{red.Contenders[0].ID, red.Contenders[1].ID}
				So(ids, ShouldContain, "a1")
			})
		})

		Convey("When a registered player also appears under a display name", func() {
			runs[0].PlayerID = "uid-alice"
			red := ranking.Reduce(runs)

			Convey("Then the registered identity wins over the name", func() {
				So(red.Contenders, ShouldHaveLength, 3)
			})
		})
	})

	Convey("Given co-op runs with swapped partners", t, func() {
		first := run("x", "Alice", "00:20:00")
		first.RunType = model.RunTypeCoop
		first.Player2Name = "Bob"
		second := run("y", "bob", "00:19:00")
		second.RunType = model.RunTypeCoop
		second.Player2Name = "ALICE"

		Convey("Then both runs count for the same pair", func() {
			So(ranking.CompetitorKey(first), ShouldEqual, ranking.CompetitorKey(second))
			red := ranking.Reduce([]model.Run{first, second})
			So(red.Contenders, ShouldHaveLength, 1)
			So(red.Contenders[0].ID, ShouldEqual, "y")
		})
	})

	Convey("Given runs without any competitor identity", t, func() {
		a := run("anon-1", "", "00:10:00")
		b := run("anon-2", "", "00:11:00")

		Convey("Then each only competes with itself", func() {
			So(ranking.Reduce([]model.Run{a, b}).Contenders, ShouldHaveLength, 2)
		})
	})
}

func TestRank(t *testing.T) {
	Convey("Given two solo runs in one group", t, func() {
		slow := run("slow", "Alice", "00:10:00")
		fast := run("fast", "Bob", "00:09:00")

		ranks := ranking.Assign([]model.Run{slow, fast})

		So(*ranks["fast"], ShouldEqual, 1)
		So(*ranks["slow"], ShouldEqual, 2)
	})

	Convey("Given more contenders than podium places", t, func() {
		runs := []model.Run{
			run("r1", "a", "00:01:00"),
			run("r2", "b", "00:02:00"),
			run("r3", "c", "00:03:00"),
			run("r4", "d", "00:04:00"),
			run("r5", "e", "00:05:00"),
		}

		placements := ranking.Rank(runs)

		Convey("Then every contender has a position but only three have a rank", func() {
			So(placements, ShouldHaveLength, 5)
			So(placements[3].Position, ShouldEqual, 4)
			So(placements[3].Rank, ShouldBeNil)
			So(*placements[2].Rank, ShouldEqual, 3)
		})
	})

	Convey("Given exactly equal times", t, func() {
		older := run("b-id", "a", "00:05:00")
		older.Date = "2023-12-31"
		newer := run("a-id", "b", "00:05:00")
		sameDay := run("c-id", "c", "00:05:00")
		sameDay.Date = "2023-12-31"

		Convey("Then the earlier date wins and ids break the remaining tie", func() {
			placements := ranking.Rank([]model.Run{newer, sameDay, older})
			So(placements[0].Run.ID, ShouldEqual, "b-id")
			So(placements[1].Run.ID, ShouldEqual, "c-id")
			So(placements[2].Run.ID, ShouldEqual, "a-id")
		})
	})

	Convey("Given an obsolete run in a ranked group", t, func() {
		runs := []model.Run{run("r1", "a", "00:01:00"), run("r2", "b", "00:02:00")}
		runs[0].IsObsolete = true

		ranks := ranking.Assign(runs)

		So(ranks["r1"], ShouldBeNil)
		So(*ranks["r2"], ShouldEqual, 1)
	})
}

func TestRankProperties(t *testing.T) {
	Convey("Given randomly generated groups", t, func() {
		for s := uint64(1); s <= 25; s++ {
			gen := seed.NewGenerator(s)
			for _, rt := range []model.RunType{model.RunTypeSolo, model.RunTypeCoop} {
				runs := gen.Group(30, rt)

				first := ranking.Assign(runs)
				second := ranking.Assign(runs)

				// Ranking twice gives the same ranks.
				So(second, ShouldResemble, first)

				// One ranked run per competitor, ranks in 1..3.
				byCompetitor := make(map[string]int)
				for _, r := range runs {
					rank := first[r.ID]
					if rank == nil {
						continue
					}
					So(*rank, ShouldBeBetweenOrEqual, 1, 3)
					So(r.Verified, ShouldBeTrue)
					So(r.IsObsolete, ShouldBeFalse)
					byCompetitor[ranking.CompetitorKey(r)]++
				}
				for _, n := range byCompetitor {
					So(n, ShouldEqual, 1)
				}
			}
		}
	})
}

func TestStandings(t *testing.T) {
	Convey("Given a group with a superseded run", t, func() {
		runs := []model.Run{
			run("a1", "Alice", "00:04:00"),
			run("a2", "Alice", "00:03:00"),
			run("b1", "Bob", "00:05:00"),
			run("c1", "Carol", "00:06:00"),
			run("d1", "Dan", "00:07:00"),
		}

		board := ranking.Standings(runs)

		So(board, ShouldHaveLength, 4)
		So(board[0].Run.ID, ShouldEqual, "a2")
		So(board[3].Position, ShouldEqual, 4)
		So(board[3].Rank, ShouldBeNil)
	})
}
