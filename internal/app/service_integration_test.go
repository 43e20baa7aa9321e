package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/runboard/internal/adapters/repository"
	service "github.com/okian/runboard/internal/app"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service that cascades through the worker pool", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc := service.New(
			service.WithStore(repository.NewMemoryStore(ctx)),
			service.WithWorkerCount(2),
			service.WithQueueSize(100),
			service.WithDedupeSize(100),
			service.WithLogger(logger.Nop()),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		for _, uid := range []string{"p1", "p2"} {
			_, err := svc.RegisterPlayer(ctx, playerNamed(uid))
			So(err, ShouldBeNil)
		}

		Convey("When a faster run displaces the leader", func() {
			_, err := svc.SubmitRun(ctx, solo("p1", "00:10:00"), false)
			So(err, ShouldBeNil)
			out, err := svc.SubmitRun(ctx, solo("p2", "00:09:00"), false)
			So(err, ShouldBeNil)

			Convey("Then the displaced player is scheduled and eventually recomputed", func() {
				So(out.Scheduled, ShouldResemble, []string{"p1"})

				var points int
				for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); {
					p, err := svc.Player(ctx, "p1")
					So(err, ShouldBeNil)
					if points = p.Player.TotalPoints; points == 50 {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(points, ShouldEqual, 50)
			})
		})
	})
}

func playerNamed(uid string) model.Player {
	return model.Player{UID: uid, DisplayName: "player " + uid}
}
