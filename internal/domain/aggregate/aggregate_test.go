package aggregate_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/runboard/internal/adapters/lock"
	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/internal/domain/aggregate"
	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/seed"
	"github.com/okian/runboard/pkg/metrics"
)

var errStoreDown = errors.New("store down")

// flakyStore fails selected reads and writes of an otherwise working store.
type flakyStore struct {
	*repository.MemoryStore
	failFind     func(model.RunFilter) bool
	failRun      map[string]bool
	mu           sync.Mutex
	putRunsCalls int
}

func (s *flakyStore) FindRuns(ctx context.Context, f model.RunFilter) ([]model.Run, error) {
	if s.failFind != nil && s.failFind(f) {
		return nil, errStoreDown
	}
	return s.MemoryStore.FindRuns(ctx, f)
}

func (s *flakyStore) PutRuns(ctx context.Context, writes []model.RunWrite) error {
	s.mu.Lock()
	s.putRunsCalls++
	s.mu.Unlock()

	var pf model.PartialBatchFailure
	var ok []model.RunWrite
	for _, w := range writes {
		if s.failRun[w.ID] {
			pf.Failed = append(pf.Failed, w.ID)
			pf.Errors = append(pf.Errors, w.ID+": "+errStoreDown.Error())
			continue
		}
		ok = append(ok, w)
	}
	if err := s.MemoryStore.PutRuns(ctx, ok); err != nil {
		return err
	}
	pf.Updated = len(ok)
	if len(pf.Failed) > 0 {
		return &pf
	}
	return nil
}

// plainStore hides PutRuns so the aggregator falls back to single writes.
type plainStore struct {
	aggregate.Store
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
}

func (l *recordingLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return func() {}, nil
}

func soloRun(id, playerID, tm string) model.Run {
	return model.Run{
		ID: id, PlayerID: playerID, PlayerName: "name-" + id,
		Category: "any", Platform: "pc", RunType: model.RunTypeSolo,
		LeaderboardType: model.LeaderboardRegular, Time: tm, Date: "2024-01-01",
		Verified: true,
	}
}

func unclaimed(id, name, tm string) model.Run {
	r := soloRun(id, "", tm)
	r.PlayerName = name
	return r
}

func newStore(t *testing.T, players []string, runs ...model.Run) *repository.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := repository.NewMemoryStore(ctx)
	t.Cleanup(func() { _ = s.Close() })
	for _, p := range players {
		if err := s.PutPlayer(ctx, p, model.Fields{model.FieldDisplayName: p}); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range runs {
		if err := s.PutRun(ctx, r.ID, model.RunFieldsOf(r)); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func mustRun(s repository.Store, id string) model.Run {
	r, err := s.GetRun(context.Background(), id)
	So(err, ShouldBeNil)
	return r
}

func mustPlayer(s repository.Store, id string) model.Player {
	p, err := s.GetPlayer(context.Background(), id)
	So(err, ShouldBeNil)
	return p
}

func TestRecomputeScenarios(t *testing.T) {
	ctx := context.Background()

	Convey("Given two solo runs in one group", t, func() {
		s := newStore(t, []string{"p1", "p2"},
			soloRun("slow", "p2", "00:10:00"),
			soloRun("fast", "p1", "00:09:00"),
		)
		agg := aggregate.New(s)

		res, err := agg.Recompute(ctx, "p1")

		So(err, ShouldBeNil)
		So(res.TotalPoints, ShouldEqual, 70)
		So(res.TotalRuns, ShouldEqual, 1)
		So(res.Batch.Updated, ShouldEqual, 2)
		So(res.Affected, ShouldResemble, []string{"p2"})
		So(mustPlayer(s, "p1").TotalPoints, ShouldEqual, 70)

		slow := mustRun(s, "slow")
		So(*slow.Rank, ShouldEqual, 2)
		So(slow.Points, ShouldEqual, 50)

		Convey("Then recomputing the other player only updates totals", func() {
			res, err := agg.Recompute(ctx, "p2")
			So(err, ShouldBeNil)
			So(res.TotalPoints, ShouldEqual, 50)
			So(res.Batch.Updated, ShouldEqual, 0)
			So(res.Affected, ShouldBeEmpty)
		})

		Convey("Then a repeated recompute is idempotent", func() {
			again, err := agg.Recompute(ctx, "p1")
			So(err, ShouldBeNil)
			So(again.TotalPoints, ShouldEqual, res.TotalPoints)
			So(again.Batch.Updated, ShouldEqual, 0)
		})
	})

	Convey("Given a first place co-op run", t, func() {
		coop := soloRun("c1", "p1", "00:09:00")
		coop.RunType = model.RunTypeCoop
		coop.Player2ID = "p2"
		other := unclaimed("c2", "x", "00:10:00")
		other.RunType = model.RunTypeCoop
		other.Player2Name = "y"

		s := newStore(t, []string{"p1", "p2"}, coop, other)
		agg := aggregate.New(s)

		first, err := agg.Recompute(ctx, "p1")
		So(err, ShouldBeNil)
		second, err := agg.Recompute(ctx, "p2")
		So(err, ShouldBeNil)

		So(first.TotalPoints, ShouldEqual, 35)
		So(second.TotalPoints, ShouldEqual, 35)
		So(mustRun(s, "c2").Points, ShouldEqual, 25)
	})

	Convey("Given an obsolete run, it keeps its base points", t, func() {
		obsolete := soloRun("o1", "p1", "00:05:00")
		obsolete.IsObsolete = true
		s := newStore(t, []string{"p1"}, obsolete, soloRun("r1", "p1", "00:09:00"))

		res, err := aggregate.New(s).Recompute(ctx, "p1")

		So(err, ShouldBeNil)
		So(res.TotalPoints, ShouldEqual, 80)
		So(res.TotalRuns, ShouldEqual, 2)
		So(mustRun(s, "o1").Rank, ShouldBeNil)
		So(*mustRun(s, "r1").Rank, ShouldEqual, 1)
	})

	Convey("Given a first place run that was just unverified", t, func() {
		first := soloRun("r1", "p1", "00:09:00")
		first.Rank, first.Points = model.IntPtr(1), 70
		second := soloRun("r2", "p2", "00:10:00")
		second.Rank, second.Points = model.IntPtr(2), 50
		s := newStore(t, []string{"p1", "p2"}, first, second)
		So(s.PutPlayer(ctx, "p1", model.TotalsFields(70, 1)), ShouldBeNil)

		flipped := first
		flipped.Verified = false
		flipped.Rank, flipped.Points = nil, 10
		So(s.PutRun(ctx, "r1", model.Fields{
			model.FieldVerified: false, model.FieldRank: nil, model.FieldPoints: 10,
		}), ShouldBeNil)

		res, err := aggregate.New(s).Recompute(ctx, "p1", aggregate.WithPinned(flipped))

		So(err, ShouldBeNil)
		So(res.TotalPoints, ShouldEqual, 0)
		So(res.TotalRuns, ShouldEqual, 0)
		So(res.Affected, ShouldResemble, []string{"p2"})
		So(*mustRun(s, "r2").Rank, ShouldEqual, 1)
		So(mustRun(s, "r1").Points, ShouldEqual, 10)
	})
}

func TestRecomputeRules(t *testing.T) {
	ctx := context.Background()

	Convey("Given a player that does not exist", t, func() {
		s := newStore(t, nil, soloRun("r1", "ghost", "00:09:00"))

		res, err := aggregate.New(s).Recompute(ctx, "ghost")

		Convey("Then nothing is created or written", func() {
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			So(res.Batch.Updated, ShouldEqual, 0)
			_, err := s.GetPlayer(ctx, "ghost")
			So(repository.IsNotFound(err), ShouldBeTrue)
			So(mustRun(s, "r1").Rank, ShouldBeNil)
		})
	})

	Convey("Given an unclaimed run faster than a registered one", t, func() {
		s := newStore(t, []string{"p1"},
			unclaimed("u1", "Ghost", "00:05:00"),
			soloRun("r1", "p1", "00:06:00"),
		)

		res, err := aggregate.New(s).Recompute(ctx, "p1")

		So(err, ShouldBeNil)
		So(res.TotalPoints, ShouldEqual, 50)
		So(mustRun(s, "u1").Points, ShouldEqual, 70)
		So(res.Affected, ShouldBeEmpty)
	})

	Convey("Given unverified runs with stale points", t, func() {
		stale := soloRun("u", "p1", "00:01:00")
		stale.Verified = false
		stale.Points = 70
		s := newStore(t, []string{"p1"}, stale, soloRun("r1", "p1", "00:09:00"))

		res, err := aggregate.New(s).Recompute(ctx, "p1")

		So(err, ShouldBeNil)
		So(res.TotalRuns, ShouldEqual, 1)
		So(res.TotalPoints, ShouldEqual, 70)
	})

	Convey("Given a pinned run newer than the stored copy", t, func() {
		s := newStore(t, []string{"p1", "p2"},
			soloRun("r1", "p1", "00:10:00"),
			soloRun("r2", "p2", "00:09:00"),
		)
		edited := soloRun("r1", "p1", "00:08:00")

		res, err := aggregate.New(s).Recompute(ctx, "p1", aggregate.WithPinned(edited))

		So(err, ShouldBeNil)
		So(res.TotalPoints, ShouldEqual, 70)
		So(*mustRun(s, "r2").Rank, ShouldEqual, 2)
	})

	Convey("Given a group the player has left", t, func() {
		left := soloRun("r2", "p2", "00:09:00")
		left.Rank, left.Points = model.IntPtr(2), 50
		s := newStore(t, []string{"p1", "p2"}, left)

		res, err := aggregate.New(s).Recompute(ctx, "p1", aggregate.WithGroup(grouping.KeyOf(left)))

		So(err, ShouldBeNil)
		So(res.TotalPoints, ShouldEqual, 0)
		So(res.Affected, ShouldResemble, []string{"p2"})
		So(*mustRun(s, "r2").Rank, ShouldEqual, 1)
	})

	Convey("Given an individual-level run without a level", t, func() {
		broken := soloRun("il", "p1", "00:05:00")
		broken.LeaderboardType = model.LeaderboardIndividualLevel
		s := newStore(t, []string{"p1"}, broken)
		agg := aggregate.New(s)

		res, err := agg.Recompute(ctx, "p1")

		So(err, ShouldBeNil)
		So(res.Inconsistent, ShouldResemble, []string{"il"})
		So(res.TotalPoints, ShouldEqual, 10)
		So(mustRun(s, "il").Rank, ShouldBeNil)

		_, err = agg.RankGroup(ctx, grouping.KeyOf(broken))
		So(errors.Is(err, model.ErrInconsistentGroup), ShouldBeTrue)
	})

	Convey("Given a locker", t, func() {
		s := newStore(t, []string{"p1"}, soloRun("r1", "p1", "00:09:00"))
		l := &recordingLocker{}

		_, err := aggregate.New(s, aggregate.WithLocker(l)).Recompute(ctx, "p1")

		So(err, ShouldBeNil)
		So(l.keys, ShouldResemble, []string{"player:p1"})
	})
}

func TestRecomputeFailures(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store that rejects another player's run", t, func() {
		mem := newStore(t, []string{"p1", "p2"},
			soloRun("r1", "p1", "00:09:00"),
			soloRun("r2", "p2", "00:10:00"),
		)
		s := &flakyStore{MemoryStore: mem, failRun: map[string]bool{"r2": true}}

		res, err := aggregate.New(s).Recompute(ctx, "p1")

		Convey("Then the failure is reported and the player's total still lands", func() {
			var pf *model.PartialBatchFailure
			So(errors.As(err, &pf), ShouldBeTrue)
			So(pf.Failed, ShouldResemble, []string{"r2"})
			So(res.TotalPoints, ShouldEqual, 70)
			So(res.Affected, ShouldBeEmpty)
			So(mustPlayer(mem, "p1").TotalPoints, ShouldEqual, 70)
		})
	})

	Convey("Given a store that rejects the player's own run", t, func() {
		own := soloRun("r1", "p1", "00:09:00")
		own.Points = 5
		mem := newStore(t, []string{"p1"}, own)
		s := &flakyStore{MemoryStore: mem, failRun: map[string]bool{"r1": true}}

		res, err := aggregate.New(s).Recompute(ctx, "p1")

		Convey("Then the run contributes its cached points", func() {
			So(errors.Is(err, model.ErrPartialBatch), ShouldBeTrue)
			So(res.TotalPoints, ShouldEqual, 5)
			So(mustRun(mem, "r1").Points, ShouldEqual, 5)
		})
	})

	Convey("Given a group whose siblings cannot be read", t, func() {
		console := soloRun("c1", "p1", "00:09:00")
		console.Platform = "console"
		console.Points = 30
		mem := newStore(t, []string{"p1"}, soloRun("r1", "p1", "00:09:00"), console)
		s := &flakyStore{MemoryStore: mem, failFind: func(f model.RunFilter) bool { return f.Platform != nil && *f.Platform == "console" }}

		res, err := aggregate.New(s).Recompute(ctx, "p1")

		Convey("Then the group is skipped and the rest is recomputed", func() {
			So(errors.Is(err, model.ErrPartialBatch), ShouldBeTrue)
			So(res.Skipped, ShouldResemble, []string{"c1"})
			So(res.Errors, ShouldHaveLength, 1)
			So(res.TotalPoints, ShouldEqual, 100)
			So(res.TotalRuns, ShouldEqual, 2)
		})
	})

	Convey("Given a store that cannot load the player's runs", t, func() {
		mem := newStore(t, []string{"p1"}, soloRun("r1", "p1", "00:09:00"))
		So(mem.PutPlayer(ctx, "p1", model.TotalsFields(42, 1)), ShouldBeNil)
		s := &flakyStore{MemoryStore: mem, failFind: func(f model.RunFilter) bool { return f.PlayerID != "" }}

		_, err := aggregate.New(s).Recompute(ctx, "p1")

		Convey("Then the cached totals are left alone", func() {
			So(errors.Is(err, errStoreDown), ShouldBeTrue)
			So(mustPlayer(mem, "p1").TotalPoints, ShouldEqual, 42)
		})
	})
}

func TestBatchWrites(t *testing.T) {
	ctx := context.Background()

	Convey("Given five runs that all need new standings", t, func() {
		runs := []model.Run{soloRun("a", "p1", "00:01:00")}
		for i, name := range []string{"b", "c", "d", "e"} {
			runs = append(runs, unclaimed(name, name, model.FormatSeconds(120+i)))
		}
		mem := newStore(t, []string{"p1"}, runs...)

		Convey("When the store writes in batches of two", func() {
			s := &flakyStore{MemoryStore: mem}
			res, err := aggregate.New(s, aggregate.WithBatchSize(2)).Recompute(ctx, "p1")

			So(err, ShouldBeNil)
			So(res.Batch.Updated, ShouldEqual, 5)
			So(s.putRunsCalls, ShouldEqual, 3)
		})

		Convey("When the store only writes single runs", func() {
			res, err := aggregate.New(plainStore{mem}).Recompute(ctx, "p1")

			So(err, ShouldBeNil)
			So(res.Batch.Updated, ShouldEqual, 5)
			So(mustRun(mem, "e").Points, ShouldEqual, 10)
		})

		Convey("When re-ranking the group directly", func() {
			res, err := aggregate.New(mem).RankGroup(ctx, grouping.KeyOf(runs[0]))

			So(err, ShouldBeNil)
			So(res.Contenders, ShouldEqual, 5)
			So(res.Batch.Updated, ShouldEqual, 5)
			So(res.Affected, ShouldResemble, []string{"p1"})
		})
	})
}

func TestRecomputeProperties(t *testing.T) {
	ctx := context.Background()

	Convey("Given random players and runs, totals match verified run points", t, func() {
		for s := uint64(1); s <= 5; s++ {
			gen := seed.NewGenerator(s)
			players := gen.Players(8)
			runs := gen.Runs(150, players)

			ids := make([]string, len(players))
			for i, p := range players {
				ids[i] = p.UID
			}
			store := newStore(t, ids, runs...)
			agg := aggregate.New(store)

			for _, id := range ids {
				_, err := agg.Recompute(ctx, id)
				So(err, ShouldBeNil)
			}

			stored, err := store.FindRuns(ctx, model.RunFilter{Verified: model.BoolPtr(true)})
			So(err, ShouldBeNil)

			claimedPoints := 0
			for _, id := range ids {
				want, count := 0, 0
				for _, r := range stored {
					if r.HasPlayer(id) {
						want += r.Points
						count++
					}
				}
				p := mustPlayer(store, id)
				So(p.TotalPoints, ShouldEqual, want)
				So(p.TotalRuns, ShouldEqual, count)
				claimedPoints += p.TotalPoints
			}

			registered := make(map[string]bool, len(ids))
			for _, id := range ids {
				registered[id] = true
			}
			fromRuns := 0
			for _, r := range stored {
				seen := map[string]bool{}
				for _, id := range r.PlayerIDs() {
					if registered[id] && !seen[id] {
						seen[id] = true
						fromRuns += r.Points
					}
				}
			}
			So(claimedPoints, ShouldEqual, fromRuns)
		}
	})
}

func TestUnverifiedAndImportedGroups(t *testing.T) {
	ctx := context.Background()

	Convey("Given a freshly submitted unverified run next to a ranked one", t, func() {
		pending := soloRun("new", "p1", "00:05:00")
		pending.Verified = false
		s := newStore(t, []string{"p1", "p2"}, pending, soloRun("r2", "p2", "00:09:00"))

		res, err := aggregate.New(s).Recompute(ctx, "p1", aggregate.WithPinned(pending))

		Convey("Then it is scored at base points without taking a rank", func() {
			So(err, ShouldBeNil)
			So(res.TotalPoints, ShouldEqual, 0)
			So(mustRun(s, "new").Rank, ShouldBeNil)
			So(mustRun(s, "new").Points, ShouldEqual, 10)
			So(*mustRun(s, "r2").Rank, ShouldEqual, 1)
			So(mustRun(s, "r2").Points, ShouldEqual, 70)
		})
	})

	Convey("Given an unverified run carrying a stale rank", t, func() {
		stale := unclaimed("u1", "Ghost", "00:05:00")
		stale.Verified = false
		one := 1
		stale.Rank, stale.Points = &one, 999
		s := newStore(t, nil, stale, unclaimed("u2", "Other", "00:09:00"))

		_, err := aggregate.New(s).RankGroup(ctx, grouping.KeyOf(stale))

		Convey("Then re-ranking the group clears the rank and writes base points", func() {
			So(err, ShouldBeNil)
			So(mustRun(s, "u1").Rank, ShouldBeNil)
			So(mustRun(s, "u1").Points, ShouldEqual, 10)
			So(*mustRun(s, "u2").Rank, ShouldEqual, 1)
		})
	})

	Convey("Given an imported run without a category id next to other categories", t, func() {
		anyPct := soloRun("r1", "p1", "00:10:00")
		glitchless := soloRun("r2", "p2", "00:05:00")
		glitchless.Category = "glitchless"
		imported := unclaimed("r3", "legacy", "00:20:00")
		imported.Category = ""
		imported.ImportedFromSRC = true
		imported.SRCCategoryName = "Any% (legacy)"
		s := newStore(t, []string{"p1", "p2"}, anyPct, glitchless, imported)
		agg := aggregate.New(s)

		for _, r := range []model.Run{anyPct, glitchless, imported} {
			_, err := agg.RankGroup(ctx, grouping.KeyOf(r))
			So(err, ShouldBeNil)
		}

		Convey("Then every category is ranked on its own", func() {
			for _, id := range []string{"r1", "r2", "r3"} {
				r := mustRun(s, id)
				So(*r.Rank, ShouldEqual, 1)
				So(r.Points, ShouldEqual, 70)
			}
		})
	})
}

// lockWaits is the number of lock acquisitions observed so far.
func lockWaits() uint64 {
	families, err := metrics.GetRegistry().Gather()
	So(err, ShouldBeNil)
	for _, f := range families {
		if f.GetName() == "runboard_engine_lock_wait_milliseconds" {
			return f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func TestLockAccounting(t *testing.T) {
	Convey("Given an aggregator on an in-process locker", t, func() {
		s := newStore(t, []string{"p1"}, soloRun("r1", "p1", "00:09:00"))
		agg := aggregate.New(s, aggregate.WithLocker(lock.NewLocal()))
		before := lockWaits()

		_, err := agg.Recompute(context.Background(), "p1")

		Convey("Then one recompute is counted as one lock acquisition", func() {
			So(err, ShouldBeNil)
			So(lockWaits()-before, ShouldEqual, 1)
		})
	})
}
