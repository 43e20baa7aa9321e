package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/okian/runboard/internal/adapters/jobs"
	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/internal/domain/aggregate"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/logger"
)

type stubRecomputer struct {
	err   error
	calls []string
}

func (s *stubRecomputer) Recompute(_ context.Context, playerID string, _ ...aggregate.Hint) (aggregate.Result, error) {
	s.calls = append(s.calls, playerID)
	return aggregate.Result{PlayerID: playerID}, s.err
}

func job(playerID string) *river.Job[jobs.RecomputePlayerArgs] {
	return &river.Job[jobs.RecomputePlayerArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Attempt: 1},
		Args:   jobs.RecomputePlayerArgs{PlayerID: playerID},
	}
}

func TestRecomputePlayerArgs(t *testing.T) {
	Convey("Recompute jobs are unique by player on their own queue", t, func() {
		args := jobs.RecomputePlayerArgs{PlayerID: "p1"}
		So(args.Kind(), ShouldEqual, "recompute_player")

		opts := args.InsertOpts()
		So(opts.Queue, ShouldEqual, jobs.QueueRecompute)
		So(opts.UniqueOpts.ByArgs, ShouldBeTrue)
		So(opts.MaxAttempts, ShouldBeGreaterThan, 1)
	})
}

func TestRecomputeWorker(t *testing.T) {
	ctx := context.Background()

	Convey("Given a recompute worker", t, func() {
		agg := &stubRecomputer{}
		w := jobs.NewRecomputeWorker(agg, logger.Nop())

		Convey("When the recompute succeeds", func() {
			So(w.Work(ctx, job("p1")), ShouldBeNil)
			So(agg.calls, ShouldResemble, []string{"p1"})
		})

		Convey("When the player no longer exists", func() {
			agg.err = model.NotFound("player", "gone")
			err := w.Work(ctx, job("gone"))

			Convey("Then the job is cancelled with the cause attached", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the store fails", func() {
			agg.err = errors.New("store down")
			err := w.Work(ctx, job("p1"))

			Convey("Then the error is returned for a retry", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, model.ErrNotFound), ShouldBeFalse)
			})
		})
	})
}

func TestClientIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping River integration test in short mode")
	}
	ctx := context.Background()

	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("runboard"),
		postgres.WithUsername("runboard"),
		postgres.WithPassword("runboard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	testcontainers.CleanupContainer(t, pg)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, jobs.Migrate(ctx, pool))

	store := repository.NewMemoryStore(ctx)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.PutPlayer(ctx, "p1", model.Fields{model.FieldDisplayName: "p1"}))
	require.NoError(t, store.PutRun(ctx, "r1", model.RunFieldsOf(model.Run{
		ID: "r1", PlayerID: "p1", Category: "any", Platform: "pc",
		RunType: model.RunTypeSolo, LeaderboardType: model.LeaderboardRegular,
		Time: "00:09:00", Date: "2024-01-01", Verified: true,
	})))

	client, err := jobs.New(pool, aggregate.New(store), jobs.WithMaxWorkers(2))
	require.NoError(t, err)
	require.NoError(t, client.Start(ctx))
	t.Cleanup(func() { _ = client.Stop(context.Background()) })

	require.NoError(t, client.Schedule(ctx, model.RecomputeRequest{PlayerID: "p1", Reason: "test"}))

	require.Eventually(t, func() bool {
		p, err := store.GetPlayer(ctx, "p1")
		return err == nil && p.TotalPoints == 70
	}, 15*time.Second, 50*time.Millisecond)
}
