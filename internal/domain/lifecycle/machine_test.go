package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/internal/domain/aggregate"
	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/lifecycle"
	"github.com/okian/runboard/internal/domain/model"
)

type recordingScheduler struct {
	mu   sync.Mutex
	reqs []model.RecomputeRequest
}

func (s *recordingScheduler) Schedule(_ context.Context, req model.RecomputeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return nil
}

// brokenRecomputer fails every recompute.
type brokenRecomputer struct{}

func (brokenRecomputer) Recompute(context.Context, string, ...aggregate.Hint) (aggregate.Result, error) {
	return aggregate.Result{}, errors.New("store down")
}

func (brokenRecomputer) RankGroup(context.Context, grouping.Key, ...aggregate.Hint) (aggregate.GroupResult, error) {
	return aggregate.GroupResult{}, errors.New("store down")
}

func soloRun(id, playerID, tm string) model.Run {
	return model.Run{
		ID: id, PlayerID: playerID, PlayerName: "name-" + id,
		Category: "any", Platform: "pc", RunType: model.RunTypeSolo,
		LeaderboardType: model.LeaderboardRegular, Time: tm, Date: "2024-01-01",
		Verified: true,
	}
}

type fixture struct {
	store *repository.MemoryStore
	agg   *aggregate.Aggregator
}

func newFixture(t *testing.T, players []model.Player, runs ...model.Run) fixture {
	t.Helper()
	ctx := context.Background()
	s := repository.NewMemoryStore(ctx)
	t.Cleanup(func() { _ = s.Close() })
	for _, p := range players {
		if err := s.PutPlayer(ctx, p.UID, model.PlayerFieldsOf(p)); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range runs {
		if err := s.PutRun(ctx, r.ID, model.RunFieldsOf(r)); err != nil {
			t.Fatal(err)
		}
	}
	agg := aggregate.New(s)
	for _, p := range players {
		if _, err := agg.Recompute(ctx, p.UID); err != nil {
			t.Fatal(err)
		}
	}
	return fixture{store: s, agg: agg}
}

func (f fixture) run(id string) model.Run {
	r, err := f.store.GetRun(context.Background(), id)
	So(err, ShouldBeNil)
	return r
}

func (f fixture) total(id string) int {
	p, err := f.store.GetPlayer(context.Background(), id)
	So(err, ShouldBeNil)
	return p.TotalPoints
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	Convey("Given an unverified unclaimed run", t, func() {
		r := soloRun("u1", "", "00:09:00")
		r.Verified = false
		f := newFixture(t, nil, r)
		m := lifecycle.New(f.store, f.agg)

		out, err := m.Verify(ctx, "u1", "admin")

		Convey("Then the group is re-ranked without touching any player", func() {
			So(err, ShouldBeNil)
			So(out.OK(), ShouldBeTrue)
			So(out.From.String(), ShouldEqual, "unverified+unclaimed")
			So(out.To.String(), ShouldEqual, "verified+unclaimed")
			So(out.Recomputed, ShouldBeEmpty)

			got := f.run("u1")
			So(got.VerifiedBy, ShouldEqual, "admin")
			So(*got.Rank, ShouldEqual, 1)
			So(got.Points, ShouldEqual, 70)
		})

		Convey("Then verifying twice is rejected", func() {
			_, err := m.Verify(ctx, "u1", "admin")
			So(errors.Is(err, lifecycle.ErrInvalidTransition), ShouldBeTrue)
		})
	})

	Convey("Given an unverified claimed run", t, func() {
		r := soloRun("r1", "p1", "00:09:00")
		r.Verified = false
		f := newFixture(t, []model.Player{{UID: "p1"}}, r)

		out, err := lifecycle.New(f.store, f.agg).Verify(ctx, "r1", "admin")

		So(err, ShouldBeNil)
		So(out.Recomputed, ShouldResemble, []string{"p1"})
		So(f.total("p1"), ShouldEqual, 70)
	})

	Convey("Given an unknown run", t, func() {
		f := newFixture(t, nil)
		_, err := lifecycle.New(f.store, f.agg).Verify(ctx, "nope", "admin")
		So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
	})
}

func TestUnverify(t *testing.T) {
	ctx := context.Background()

	Convey("Given a first place run being unverified", t, func() {
		f := newFixture(t, []model.Player{{UID: "p1"}, {UID: "p2"}},
			soloRun("r1", "p1", "00:09:00"),
			soloRun("r2", "p2", "00:10:00"),
		)
		So(f.total("p1"), ShouldEqual, 70)
		So(f.total("p2"), ShouldEqual, 50)

		Convey("When cascades run inline", func() {
			out, err := lifecycle.New(f.store, f.agg).Unverify(ctx, "r1")

			Convey("Then the run loses its rank and keeps base points", func() {
				So(err, ShouldBeNil)
				So(out.OK(), ShouldBeTrue)
				got := f.run("r1")
				So(got.Verified, ShouldBeFalse)
				So(got.Rank, ShouldBeNil)
				So(got.Points, ShouldEqual, 10)
			})

			Convey("Then the player's total drops by the run's previous award", func() {
				So(f.total("p1"), ShouldEqual, 0)
			})

			Convey("Then the promoted player is recomputed", func() {
				So(out.Recomputed, ShouldResemble, []string{"p1", "p2"})
				So(f.total("p2"), ShouldEqual, 70)
			})
		})

		Convey("When cascades go through a scheduler", func() {
			sched := &recordingScheduler{}
			now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			m := lifecycle.New(f.store, f.agg,
				lifecycle.WithScheduler(sched),
				lifecycle.WithClock(func() time.Time { return now }))

			out, err := m.Unverify(ctx, "r1")

			So(err, ShouldBeNil)
			So(out.Scheduled, ShouldResemble, []string{"p2"})
			So(sched.reqs, ShouldResemble, []model.RecomputeRequest{
				{PlayerID: "p2", Reason: "cascade:unverify", RequestedAt: now},
			})
			So(f.total("p2"), ShouldEqual, 50)
		})
	})

	Convey("Given an unverified run", t, func() {
		r := soloRun("r1", "p1", "00:09:00")
		r.Verified = false
		f := newFixture(t, []model.Player{{UID: "p1"}}, r)

		_, err := lifecycle.New(f.store, f.agg).Unverify(ctx, "r1")
		So(errors.Is(err, lifecycle.ErrInvalidTransition), ShouldBeTrue)
	})
}

func TestClaim(t *testing.T) {
	ctx := context.Background()

	imported := func() model.Run {
		r := soloRun("u1", "", "00:09:00")
		r.PlayerName = "Alice"
		r.ImportedFromSRC = true
		r.SRCPlayerName = "alice_src"
		return r
	}

	Convey("Given an imported run being claimed", t, func() {
		players := []model.Player{
			{UID: "p1", SRCUsername: "Alice_SRC"},
			{UID: "p2", SRCUsername: "bob"},
			{UID: "p3", SRCUsername: "alice_src"},
		}
		f := newFixture(t, players, imported())
		m := lifecycle.New(f.store, f.agg)
		So(f.total("p1"), ShouldEqual, 0)

		out, err := m.Claim(ctx, "u1", "p1")

		Convey("Then the run joins the claiming player's total", func() {
			So(err, ShouldBeNil)
			So(out.From.Claimed, ShouldBeFalse)
			So(out.To.Claimed, ShouldBeTrue)
			So(f.run("u1").PlayerID, ShouldEqual, "p1")
			So(f.total("p1"), ShouldEqual, 70)
		})

		Convey("Then claiming it again is rejected", func() {
			_, err := m.Claim(ctx, "u1", "p1")
			So(errors.Is(err, lifecycle.ErrAlreadyClaimed), ShouldBeTrue)
		})

		Convey("Then a player with another identity is rejected", func() {
			_, err := m.Claim(ctx, "u1", "p2")
			So(errors.Is(err, lifecycle.ErrIdentityMismatch), ShouldBeTrue)
			So(f.run("u1").PlayerID, ShouldEqual, "p1")
		})

		Convey("Then an unknown player is rejected", func() {
			_, err := m.Claim(ctx, "u1", "nobody")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then reassigning recomputes both players", func() {
			out, err := m.Claim(ctx, "u1", "p3")
			So(err, ShouldBeNil)
			So(out.Recomputed, ShouldResemble, []string{"p1", "p3"})
			So(f.total("p1"), ShouldEqual, 0)
			So(f.total("p3"), ShouldEqual, 70)
		})
	})

	Convey("Given a native run already held by its runner", t, func() {
		r := soloRun("n1", "p1", "00:09:00")
		r.PlayerName = "Alice"
		f := newFixture(t, []model.Player{{UID: "p1", DisplayName: "Alice"}, {UID: "p2", SRCUsername: "alice"}}, r)
		So(f.total("p1"), ShouldEqual, 70)

		_, err := lifecycle.New(f.store, f.agg).Claim(ctx, "n1", "p2")

		Convey("Then a matching display name cannot take it over", func() {
			So(errors.Is(err, lifecycle.ErrIdentityMismatch), ShouldBeTrue)
			So(f.run("n1").PlayerID, ShouldEqual, "p1")
			So(f.total("p1"), ShouldEqual, 70)
			So(f.total("p2"), ShouldEqual, 0)
		})
	})

	Convey("Given a co-op run with an unclaimed partner", t, func() {
		r := soloRun("c1", "p1", "00:09:00")
		r.RunType = model.RunTypeCoop
		r.Player2Name = "Partner"
		f := newFixture(t, []model.Player{{UID: "p1"}, {UID: "p2", SRCUsername: "partner"}}, r)
		So(f.total("p1"), ShouldEqual, 35)

		_, err := lifecycle.New(f.store, f.agg).Claim(ctx, "c1", "p2")

		So(err, ShouldBeNil)
		So(f.run("c1").Player2ID, ShouldEqual, "p2")
		So(f.total("p2"), ShouldEqual, 35)
	})
}

func TestMarkObsolete(t *testing.T) {
	ctx := context.Background()

	Convey("Given a first place run", t, func() {
		f := newFixture(t, []model.Player{{UID: "p1"}}, soloRun("r1", "p1", "00:09:00"))
		m := lifecycle.New(f.store, f.agg)

		out, err := m.MarkObsolete(ctx, "r1", true)

		Convey("Then it drops out of the ranking but keeps its base points", func() {
			So(err, ShouldBeNil)
			So(out.Run.IsObsolete, ShouldBeTrue)
			So(f.run("r1").Rank, ShouldBeNil)
			So(f.total("p1"), ShouldEqual, 10)
		})

		Convey("Then clearing the flag restores the rank", func() {
			_, err := m.MarkObsolete(ctx, "r1", false)
			So(err, ShouldBeNil)
			So(*f.run("r1").Rank, ShouldEqual, 1)
			So(f.total("p1"), ShouldEqual, 70)
		})
	})
}

func TestFailures(t *testing.T) {
	ctx := context.Background()

	Convey("Given a recomputer that always fails", t, func() {
		r := soloRun("r1", "p1", "00:09:00")
		r.Verified = false
		f := newFixture(t, []model.Player{{UID: "p1"}}, r)

		out, err := lifecycle.New(f.store, brokenRecomputer{}).Verify(ctx, "r1", "admin")

		Convey("Then the flip is kept and the failure reported", func() {
			So(err, ShouldBeNil)
			So(out.OK(), ShouldBeFalse)
			So(out.Failures, ShouldHaveLength, 1)
			So(out.Failures[0].Step, ShouldEqual, lifecycle.StepRecompute)
			So(out.Failures[0].PlayerID, ShouldEqual, "p1")
			So(f.run("r1").Verified, ShouldBeTrue)
		})
	})
}

func TestReconcileDelete(t *testing.T) {
	ctx := context.Background()

	Convey("Given a deleted first place run", t, func() {
		f := newFixture(t, []model.Player{{UID: "p1"}, {UID: "p2"}},
			soloRun("r1", "p1", "00:09:00"),
			soloRun("r2", "p2", "00:10:00"),
		)
		before := f.run("r1")
		So(f.store.DeleteRun(ctx, "r1"), ShouldBeNil)

		out := lifecycle.New(f.store, f.agg).Reconcile(ctx, "delete", &before, nil)

		So(out.OK(), ShouldBeTrue)
		So(f.total("p1"), ShouldEqual, 0)
		So(f.total("p2"), ShouldEqual, 70)
	})
}
