package sweep_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/internal/domain/aggregate"
	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/ranking"
	"github.com/okian/runboard/internal/domain/sweep"
	"github.com/okian/runboard/internal/seed"
)

func seeded(t *testing.T, s uint64) *repository.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore(ctx)
	t.Cleanup(func() { _ = store.Close() })

	gen := seed.NewGenerator(s)
	players := gen.Players(10)
	for _, p := range players {
		if err := store.PutPlayer(ctx, p.UID, model.PlayerFieldsOf(p)); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range gen.Runs(120, players) {
		r.Points = 999 // stale cache the sweep has to overwrite
		if err := store.PutRun(ctx, r.ID, model.RunFieldsOf(r)); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func groupCount(runs []model.Run) int {
	n := 0
	for _, k := range grouping.Distinct(runs) {
		if k.Complete() {
			n++
		}
	}
	return n
}

func TestSweep(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with stale standings", t, func() {
		store := seeded(t, 7)
		var seen []sweep.Progress
		s := sweep.New(store, aggregate.New(store), sweep.WithProgress(func(p sweep.Progress) {
			seen = append(seen, p)
		}))

		rep, err := s.Run(ctx, false)
		So(err, ShouldBeNil)

		runs, err := store.FindRuns(ctx, model.RunFilter{})
		So(err, ShouldBeNil)
		players, err := store.ListPlayers(ctx)
		So(err, ShouldBeNil)

		Convey("Then every group and player is processed", func() {
			So(rep.Resumed, ShouldBeFalse)
			So(rep.Failed, ShouldBeEmpty)
			So(rep.Groups, ShouldEqual, groupCount(runs))
			So(rep.Players, ShouldEqual, len(players))
			So(seen, ShouldHaveLength, rep.Groups+rep.Players)
			last := seen[len(seen)-1]
			So(last.Phase, ShouldEqual, sweep.PhasePlayers)
			So(last.Done, ShouldEqual, last.Total)
		})

		Convey("Then stored ranks match a fresh ranking", func() {
			for _, group := range grouping.Partition(runs) {
				want := ranking.Assign(group)
				for _, r := range group {
					So(model.SameRank(r.Rank, want[r.ID]), ShouldBeTrue)
					So(r.Points, ShouldNotEqual, 999)
				}
			}
		})

		Convey("Then unverified runs hold no rank and only base points", func() {
			for _, r := range runs {
				if r.Verified {
					continue
				}
				base := 10
				if r.IsCoop() {
					base /= 2
				}
				So(r.Rank, ShouldBeNil)
				So(r.Points, ShouldEqual, base)
			}
		})

		Convey("Then player totals add up their verified runs", func() {
			for _, p := range players {
				total, count := 0, 0
				for _, r := range runs {
					if r.Verified && r.HasPlayer(p.UID) {
						total += r.Points
						count++
					}
				}
				So(p.TotalPoints, ShouldEqual, total)
				So(p.TotalRuns, ShouldEqual, count)
			}
		})

		Convey("Then the checkpoint is cleared", func() {
			_, err := store.GetCheckpoint(ctx, sweep.DefaultCheckpoint)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestResume(t *testing.T) {
	Convey("Given a sweep interrupted after three groups", t, func() {
		store := seeded(t, 11)
		agg := aggregate.New(store)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		_, err := sweep.New(store, agg, sweep.WithProgress(func(p sweep.Progress) {
			if p.Done == 3 {
				cancel()
			}
		})).Run(ctx, false)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)

		cp, err := store.GetCheckpoint(context.Background(), sweep.DefaultCheckpoint)
		So(err, ShouldBeNil)
		So(cp.Phase, ShouldEqual, sweep.PhaseGroups)
		So(cp.Done, ShouldEqual, 3)

		Convey("When it is resumed", func() {
			var first sweep.Progress
			rep, err := sweep.New(store, agg, sweep.WithProgress(func(p sweep.Progress) {
				if first.Phase == "" {
					first = p
				}
			})).Run(context.Background(), true)

			Convey("Then only the remaining groups are ranked", func() {
				So(err, ShouldBeNil)
				So(rep.Resumed, ShouldBeTrue)
				runs, _ := store.FindRuns(context.Background(), model.RunFilter{})
				So(rep.Groups, ShouldEqual, groupCount(runs)-3)
				So(first.Done, ShouldEqual, 4)
				So(first.Item > cp.Cursor, ShouldBeTrue)
			})
		})

		Convey("When it is restarted without resume", func() {
			rep, err := sweep.New(store, agg).Run(context.Background(), false)

			Convey("Then it starts from the beginning", func() {
				So(err, ShouldBeNil)
				So(rep.Resumed, ShouldBeFalse)
				runs, _ := store.FindRuns(context.Background(), model.RunFilter{})
				So(rep.Groups, ShouldEqual, groupCount(runs))
			})
		})
	})

	Convey("Given a checkpoint with an unknown phase", t, func() {
		store := seeded(t, 3)
		So(store.PutCheckpoint(context.Background(), sweep.DefaultCheckpoint, model.Checkpoint{Phase: "bogus"}), ShouldBeNil)

		_, err := sweep.New(store, aggregate.New(store)).Run(context.Background(), true)
		So(errors.Is(err, sweep.ErrUnknownPhase), ShouldBeTrue)
	})
}

func TestThrottle(t *testing.T) {
	Convey("Given a throttled sweep on an empty store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		defer store.Close()

		rep, err := sweep.New(store, aggregate.New(store), sweep.WithRate(1000, 10)).Run(ctx, false)

		So(err, ShouldBeNil)
		So(rep.Groups, ShouldEqual, 0)
		So(rep.Players, ShouldEqual, 0)
	})
}
