package normalize_test

import (
	"testing"
	"time"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/normalize"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2024, 5, 17, 22, 30, 0, 0, time.UTC)

func TestNormalize(t *testing.T) {
	Convey("Given a partial run record", t, func() {
		raw := model.Run{
			ID:         "  r1 ",
			PlayerID:   " uid-1 ",
			PlayerName: "  Alice  ",
			Category:   " any ",
			Platform:   "pc ",
			Time:       "1:02:03",
			Date:       "2024-03-01T12:34:56Z",
		}

		Convey("When it is normalized", func() {
			run := normalize.Normalize(raw, fixedNow)

			Convey("Then ids and names are trimmed", func() {
				So(run.ID, ShouldEqual, "r1")
				So(run.PlayerID, ShouldEqual, "uid-1")
				So(run.PlayerName, ShouldEqual, "Alice")
				So(run.Category, ShouldEqual, "any")
				So(run.Platform, ShouldEqual, "pc")
			})

			Convey("Then enums take their defaults", func() {
				So(run.RunType, ShouldEqual, model.RunTypeSolo)
				So(run.LeaderboardType, ShouldEqual, model.LeaderboardRegular)
			})

			Convey("Then the date loses its time of day", func() {
				So(run.Date, ShouldEqual, "2024-03-01")
			})

			Convey("Then the time is kept and parses to seconds", func() {
				So(run.Time, ShouldEqual, "1:02:03")
				So(run.Seconds(), ShouldEqual, 3723)
			})

			Convey("And normalizing again changes nothing", func() {
				So(normalize.Normalize(run, fixedNow.Add(48*time.Hour)), ShouldResemble, run)
			})
		})

		Convey("When the time and date are malformed", func() {
			raw.Time = "12 minutes"
			raw.Date = "yesterday"
			run := normalize.Normalize(raw, fixedNow)

			So(run.Time, ShouldEqual, model.ZeroTime)
			So(run.Seconds(), ShouldEqual, 0)
			So(run.Date, ShouldEqual, "2024-05-17")
		})

		Convey("When enums carry unknown or alternate spellings", func() {
			raw.RunType = "COOP"
			raw.LeaderboardType = "Individual-Level"
			run := normalize.Normalize(raw, fixedNow)

			So(run.RunType, ShouldEqual, model.RunTypeCoop)
			So(run.LeaderboardType, ShouldEqual, model.LeaderboardIndividualLevel)

			raw.RunType = "relay"
			raw.LeaderboardType = "speedy"
			run = normalize.Normalize(raw, fixedNow)
			So(run.RunType, ShouldEqual, model.RunTypeSolo)
			So(run.LeaderboardType, ShouldEqual, model.LeaderboardRegular)
		})

		Convey("When derived caches are out of range", func() {
			raw.Rank = model.IntPtr(7)
			raw.Points = -3
			run := normalize.Normalize(raw, fixedNow)

			So(run.Rank, ShouldBeNil)
			So(run.Points, ShouldEqual, 0)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given run records to validate", t, func() {
		valid := model.Run{
			PlayerName: "Alice",
			Category:   "any",
			Platform:   "pc",
			Time:       "00:10:00",
			Date:       "2024-01-01",
		}

		Convey("When every required field is present", func() {
			So(normalize.Validate(valid), ShouldBeEmpty)
			So(normalize.Check(valid), ShouldBeNil)
		})

		Convey("When the record is empty", func() {
			problems := normalize.Validate(model.Run{})

			So(problems, ShouldContain, normalize.ProblemPlayerName)
			So(problems, ShouldContain, normalize.ProblemTime)
			So(problems, ShouldContain, normalize.ProblemDate)
			So(problems, ShouldContain, normalize.ProblemCategory)
			So(problems, ShouldContain, normalize.ProblemPlatform)
		})

		Convey("When an imported run has fallback names instead of ids", func() {
			run := valid
			run.PlayerName = ""
			run.Category = ""
			run.Platform = ""
			run.ImportedFromSRC = true
			run.SRCPlayerName = "speedy"
			run.SRCCategoryName = "Any%"
			run.SRCPlatformName = "PC"

			So(normalize.Validate(run), ShouldBeEmpty)
		})

		Convey("When a non-imported run has only fallback names", func() {
			run := valid
			run.Category = ""
			run.SRCCategoryName = "Any%"

			So(normalize.Validate(run), ShouldContain, normalize.ProblemCategory)
		})

		Convey("When the time and date are malformed", func() {
			run := valid
			run.Time = "10 min"
			run.Date = "01/02/2024"
			problems := normalize.Validate(run)

			So(problems, ShouldContain, normalize.ProblemTimeFormat)
			So(problems, ShouldContain, normalize.ProblemDateFormat)
		})

		Convey("When a level-scoped run has no level", func() {
			run := valid
			run.LeaderboardType = model.LeaderboardIndividualLevel

			So(normalize.Validate(run), ShouldContain, normalize.ProblemLevel)
		})

		Convey("When a co-op run has no partner", func() {
			run := valid
			run.RunType = model.RunTypeCoop

			So(normalize.Validate(run), ShouldContain, normalize.ProblemPartnerName)
		})

		Convey("When a zero time is submitted", func() {
			run := valid
			run.Time = "0:00:00"
			err := normalize.Check(run)

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, normalize.ProblemZeroTime)
		})
	})
}
