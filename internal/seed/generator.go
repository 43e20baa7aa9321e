// Package seed generates realistic players, categories and runs for demos,
// load tests and randomized tests.
package seed

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/runboard/internal/domain/model"
)

// Generation bounds.
const (
	minRunSeconds = 5 * 60
	maxRunSeconds = 3 * 60 * 60
	verifiedOdds  = 80 // percent
	obsoleteOdds  = 10 // percent
	coopOdds      = 25 // percent
	claimedOdds   = 70 // percent
	historyYears  = 3
)

// Generator produces deterministic fake data for a given seed.
type Generator struct {
	faker *gofakeit.Faker
	now   time.Time
}

// NewGenerator returns a generator seeded with s. The same seed yields the
// same data.
func NewGenerator(s uint64) *Generator {
	return &Generator{
		faker: gofakeit.New(s),
		now:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Players returns n registered players with unique ids and external identities.
func (g *Generator) Players(n int) []model.Player {
	players := make([]model.Player, n)
	for i := range players {
		name := g.faker.Username()
		players[i] = model.Player{
			UID:         fmt.Sprintf("player-%03d-%s", i, g.faker.Numerify("####")),
			DisplayName: name,
			NameColor:   g.faker.HexColor(),
			SRCUsername: fmt.Sprintf("%s_%d", name, i),
		}
	}
	return players
}

// Categories returns a small catalogue, part of it named after the legacy
// bonus conventions and part of it with explicit thresholds.
func (g *Generator) Categories() []model.Reference {
	return []model.Reference{
		{Kind: model.KindCategory, ID: "any", Name: "Any%"},
		{Kind: model.KindCategory, ID: "nocuts", Name: "Nocuts/Noships"},
		{Kind: model.KindCategory, ID: "hundred", Name: "100%", BonusThresholdSeconds: 2 * 60 * 60},
		{Kind: model.KindCategory, ID: "glitchless", Name: "Glitchless"},
	}
}

// Platforms returns a small platform catalogue.
func (g *Generator) Platforms() []model.Reference {
	return []model.Reference{
		{Kind: model.KindPlatform, ID: "pc", Name: "PC"},
		{Kind: model.KindPlatform, ID: "console", Name: "Console"},
	}
}

// Levels returns a small level catalogue.
func (g *Generator) Levels() []model.Reference {
	return []model.Reference{
		{Kind: model.KindLevel, ID: "l1", Name: "Level 1"},
		{Kind: model.KindLevel, ID: "l2", Name: "Level 2"},
	}
}

// Runs returns n runs spread over the catalogue. Roughly a quarter are
// unclaimed imports, some are co-op, unverified or obsolete.
func (g *Generator) Runs(n int, players []model.Player) []model.Run {
	categories := g.Categories()
	platforms := g.Platforms()
	levels := g.Levels()

	runs := make([]model.Run, n)
	for i := range runs {
		lt := model.LeaderboardTypes[g.faker.Number(0, len(model.LeaderboardTypes)-1)]
		run := model.Run{
			ID:              fmt.Sprintf("run-%05d", i),
			Category:        categories[g.faker.Number(0, len(categories)-1)].ID,
			Platform:        platforms[g.faker.Number(0, len(platforms)-1)].ID,
			RunType:         model.RunTypeSolo,
			LeaderboardType: lt,
			Time:            model.FormatSeconds(g.faker.Number(minRunSeconds, maxRunSeconds)),
			Date:            model.Today(g.faker.DateRange(g.now.AddDate(-historyYears, 0, 0), g.now)),
			Verified:        g.odds(verifiedOdds),
			IsObsolete:      g.odds(obsoleteOdds),
			SubmittedAt:     g.now,
		}
		if lt.LevelScoped() {
			run.Level = levels[g.faker.Number(0, len(levels)-1)].ID
		}
		g.assignCompetitor(&run, players, false)
		if g.odds(coopOdds) {
			run.RunType = model.RunTypeCoop
			g.assignCompetitor(&run, players, true)
		}
		runs[i] = run
	}
	return runs
}

// Group returns n runs that all share one group, with a few repeat
// competitors so reduction has work to do.
func (g *Generator) Group(n int, runType model.RunType) []model.Run {
	names := make([]string, max(n/2, 1))
	for i := range names {
		names[i] = g.faker.Username()
	}

	runs := make([]model.Run, n)
	for i := range runs {
		run := model.Run{
			ID:              fmt.Sprintf("g-%04d", i),
			Category:        "any",
			Platform:        "pc",
			RunType:         runType,
			LeaderboardType: model.LeaderboardRegular,
			Time:            model.FormatSeconds(g.faker.Number(minRunSeconds, minRunSeconds+60)),
			Date:            model.Today(g.faker.DateRange(g.now.AddDate(0, -1, 0), g.now)),
			Verified:        g.odds(verifiedOdds),
			IsObsolete:      g.odds(obsoleteOdds),
			PlayerName:      g.faker.RandomString(names),
		}
		if g.odds(claimedOdds) {
			run.PlayerID = "uid-" + run.PlayerName
		}
		if runType == model.RunTypeCoop {
			run.Player2Name = g.faker.RandomString(names)
		}
		runs[i] = run
	}
	return runs
}

func (g *Generator) assignCompetitor(run *model.Run, players []model.Player, partner bool) {
	if len(players) == 0 || !g.odds(claimedOdds) {
		name := g.faker.Username()
		run.ImportedFromSRC = true
		run.SRCRunID = g.faker.UUID()
		if partner {
			run.Player2Name = name
			run.SRCPlayer2Name = name
		} else {
			run.PlayerName = name
			run.SRCPlayerName = name
		}
		return
	}

	p := players[g.faker.Number(0, len(players)-1)]
	if partner {
		if p.UID == run.PlayerID {
			p = players[(g.faker.Number(0, len(players)-1)+1)%len(players)]
		}
		run.Player2ID = p.UID
		run.Player2Name = p.DisplayName
		return
	}
	run.PlayerID = p.UID
	run.PlayerName = p.DisplayName
}

func (g *Generator) odds(percent int) bool {
	return g.faker.Number(1, 100) <= percent
}
