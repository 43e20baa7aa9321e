package grouping_test

import (
	"errors"
	"testing"

	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKeyOf(t *testing.T) {
	Convey("Given runs on different leaderboards", t, func() {
		regular := model.Run{
			LeaderboardType: model.LeaderboardRegular,
			Category:        "any", Platform: "pc", Level: "stray", RunType: model.RunTypeSolo,
		}
		il := model.Run{
			LeaderboardType: model.LeaderboardIndividualLevel,
			Category:        "any", Platform: "pc", Level: "l1", RunType: model.RunTypeSolo,
		}

		Convey("When a regular run carries a level", func() {
			k := grouping.KeyOf(regular)

			Convey("Then the level does not take part in the key", func() {
				So(k.Level, ShouldEqual, "")
				So(k.Complete(), ShouldBeTrue)
				So(k.Filter().Level, ShouldBeNil)
			})
		})

		Convey("When an individual-level run is keyed", func() {
			k := grouping.KeyOf(il)

			So(k.Level, ShouldEqual, "l1")
			So(*k.Filter().Level, ShouldEqual, "l1")
			So(k.Filter().Verified, ShouldBeNil)
			So(k.Contains(il), ShouldBeTrue)
			So(k.Contains(regular), ShouldBeFalse)
		})

		Convey("When an imported run has no category or platform id", func() {
			imported := regular
			imported.Level = ""
			imported.Category, imported.Platform = "", ""
			imported.ImportedFromSRC = true
			imported.SRCCategoryName, imported.SRCPlatformName = "Any%", "PC"
			k := grouping.KeyOf(imported)

			Convey("Then its filter matches only runs with the same empty components", func() {
				f := k.Filter()
				So(*f.Category, ShouldEqual, "")
				So(*f.Platform, ShouldEqual, "")
				So(f.Matches(imported), ShouldBeTrue)
				So(f.Matches(regular), ShouldBeFalse)
				So(grouping.KeyOf(regular).Filter().Matches(imported), ShouldBeFalse)
			})
		})

		Convey("When a level-scoped run has no level", func() {
			il.Level = ""
			k := grouping.KeyOf(il)

			So(k.Complete(), ShouldBeFalse)
		})

		Convey("When only the run type differs", func() {
			coop := regular
			coop.RunType = model.RunTypeCoop

			So(grouping.KeyOf(coop), ShouldNotEqual, grouping.KeyOf(regular))
		})
	})
}

func TestKeyString(t *testing.T) {
	Convey("Given a key", t, func() {
		k := grouping.Key{
			LeaderboardType: model.LeaderboardCommunityGolds,
			Level:           "l2", Category: "c", Platform: "p", RunType: model.RunTypeCoop,
		}

		Convey("Then it round-trips through its string form", func() {
			parsed, err := grouping.ParseKey(k.String())
			So(err, ShouldBeNil)
			So(parsed, ShouldResemble, k)
		})

		Convey("Then malformed strings are rejected", func() {
			_, err := grouping.ParseKey("regular|c|p")
			So(errors.Is(err, grouping.ErrMalformedKey), ShouldBeTrue)
		})
	})
}

func TestDistinct(t *testing.T) {
	Convey("Given runs spread over two groups", t, func() {
		runs := []model.Run{
			{ID: "1", LeaderboardType: model.LeaderboardRegular, Category: "b", Platform: "p", RunType: model.RunTypeSolo},
			{ID: "2", LeaderboardType: model.LeaderboardRegular, Category: "a", Platform: "p", RunType: model.RunTypeSolo},
			{ID: "3", LeaderboardType: model.LeaderboardRegular, Category: "b", Platform: "p", RunType: model.RunTypeSolo},
		}

		keys := grouping.Distinct(runs)
		So(keys, ShouldHaveLength, 2)
		So(keys[0].Category, ShouldEqual, "a")

		groups := grouping.Partition(runs)
		So(groups[keys[1]], ShouldHaveLength, 2)
	})
}
