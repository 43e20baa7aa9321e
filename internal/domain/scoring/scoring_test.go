package scoring_test

import (
	"testing"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/ranking"
	scoring "github.com/okian/runboard/internal/domain/scoring"
	"github.com/okian/runboard/internal/seed"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPoints(t *testing.T) {
	Convey("Given the default points configuration", t, func() {
		cfg := model.DefaultPointsConfig()
		calc := scoring.NewCalculator()

		Convey("The first place solo run earns base plus the first place bonus", func() {
			in := scoring.Input{Seconds: 540, Rank: model.IntPtr(1), RunType: model.RunTypeSolo}
			So(calc.Points(in, cfg), ShouldEqual, 70)
		})

		Convey("Each co-op partner earns half of the solo award", func() {
			in := scoring.Input{Seconds: 540, Rank: model.IntPtr(1), RunType: model.RunTypeCoop}
			So(calc.Points(in, cfg), ShouldEqual, 35)
		})

		Convey("An obsolete run earns the base only", func() {
			run := model.Run{Time: "00:09:00", RunType: model.RunTypeSolo, Verified: true, IsObsolete: true}
			in := scoring.InputFor(run, model.Reference{BonusThresholdSeconds: 600}, nil)
			So(calc.Points(in, cfg), ShouldEqual, 10)
		})

		Convey("When podium positions differ", func() {
			first := scoring.Points(scoring.Input{Rank: model.IntPtr(1)}, cfg)
			second := scoring.Points(scoring.Input{Rank: model.IntPtr(2)}, cfg)
			third := scoring.Points(scoring.Input{Rank: model.IntPtr(3)}, cfg)
			none := scoring.Points(scoring.Input{}, cfg)

			So(first, ShouldBeGreaterThan, second)
			So(second, ShouldBeGreaterThan, third)
			So(third, ShouldBeGreaterThan, none)
			So(none, ShouldEqual, cfg.BaseMultiplier)
		})

		Convey("When the category has an explicit time threshold", func() {
			in := scoring.Input{Seconds: 600, BonusThresholdSeconds: 600}
			So(scoring.Points(in, cfg), ShouldEqual, cfg.BaseMultiplier+cfg.ThresholdBonus)

			in.Seconds = 601
			So(scoring.Points(in, cfg), ShouldEqual, cfg.BaseMultiplier)

			in.Seconds = 0
			So(scoring.Points(in, cfg), ShouldEqual, cfg.BaseMultiplier)
		})

		Convey("When the category name matches a legacy convention but has no threshold", func() {
			in := scoring.Input{Seconds: 10, CategoryName: "Any%"}
			cfg.AnyPercentThreshold = 3600
			So(scoring.Points(in, cfg), ShouldEqual, cfg.BaseMultiplier)
		})

		Convey("When points are disabled", func() {
			cfg.Enabled = false
			So(scoring.Points(scoring.Input{Rank: model.IntPtr(1)}, cfg), ShouldEqual, 0)
		})

		Convey("When the configuration holds negative values", func() {
			cfg.BaseMultiplier = -50
			cfg.FirstPlaceBonus = -10
			So(scoring.Points(scoring.Input{Rank: model.IntPtr(1)}, cfg), ShouldEqual, 0)
		})

		Convey("When an unverified run is scored", func() {
			run := model.Run{Time: "00:01:00", RunType: model.RunTypeSolo}
			in := scoring.InputFor(run, model.Reference{}, model.IntPtr(1))
			So(scoring.Points(in, cfg), ShouldEqual, cfg.BaseMultiplier)
		})
	})
}

func TestPointsProperties(t *testing.T) {
	Convey("Given random groups, co-op awards halve the solo award", t, func() {
		cfg := model.DefaultPointsConfig()
		category := model.Reference{Kind: model.KindCategory, ID: "any", BonusThresholdSeconds: 330}

		for s := uint64(1); s <= 20; s++ {
			runs := seed.NewGenerator(s).Group(20, model.RunTypeSolo)
			ranks := ranking.Assign(runs)

			for _, r := range runs {
				solo := scoring.InputFor(r, category, ranks[r.ID])
				soloPoints := scoring.Points(solo, cfg)
				So(soloPoints, ShouldBeGreaterThanOrEqualTo, 0)

				coop := solo
				coop.RunType = model.RunTypeCoop
				So(scoring.Points(coop, cfg), ShouldEqual, soloPoints/2)
			}
		}
	})
}

func TestMigrateThresholds(t *testing.T) {
	Convey("Given categories named after the legacy conventions", t, func() {
		cfg := model.DefaultPointsConfig()
		cfg.AnyPercentThreshold = 1800
		cfg.NocutsNoshipsThreshold = 2400

		categories := []model.Reference{
			{Kind: model.KindCategory, ID: "any", Name: "Any%"},
			{Kind: model.KindCategory, ID: "nc", Name: "Nocuts/Noships"},
			{Kind: model.KindCategory, ID: "anync", Name: "any% NoShips"},
			{Kind: model.KindCategory, ID: "set", Name: "Any% Glitched", BonusThresholdSeconds: 99},
			{Kind: model.KindCategory, ID: "other", Name: "Glitchless"},
			{Kind: model.KindPlatform, ID: "pc", Name: "Any% PC"},
		}

		changed := scoring.MigrateThresholds(categories, cfg)

		Convey("Then only unset matching categories receive a threshold", func() {
			So(changed, ShouldHaveLength, 3)
			So(changed[0].BonusThresholdSeconds, ShouldEqual, 1800)
			So(changed[1].BonusThresholdSeconds, ShouldEqual, 2400)
			So(changed[2].BonusThresholdSeconds, ShouldEqual, 2400)
		})

		Convey("Then running it again over the result changes nothing", func() {
			So(scoring.MigrateThresholds(changed, cfg), ShouldBeEmpty)
		})
	})
}
