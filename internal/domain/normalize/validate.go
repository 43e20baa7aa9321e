package normalize

import (
	"strings"

	"github.com/okian/runboard/internal/domain/model"
)

// Validation problems.
const (
	ProblemPlayerName  = "player name is required"
	ProblemPartnerName = "second player name is required for co-op runs"
	ProblemTime        = "time is required"
	ProblemTimeFormat  = "time must be formatted as H:MM:SS"
	ProblemZeroTime    = "time must be greater than zero"
	ProblemDate        = "date is required"
	ProblemDateFormat  = "date must be formatted as YYYY-MM-DD"
	ProblemCategory    = "category is required"
	ProblemPlatform    = "platform is required"
	ProblemLevel       = "level is required for individual-level and community-golds runs"
	ProblemRunType     = "run type must be solo or co-op"
	ProblemLeaderboard = "leaderboard type must be regular, individual-level or community-golds"
)

// Validate reports every problem with a raw run. Imported runs are excused
// from missing player/category/platform/level ids when the matching import
// name is present. An empty result means the run is acceptable.
func Validate(run model.Run) []string {
	var problems []string
	imported := run.ImportedFromSRC

	if blank(run.PlayerName) && blank(run.PlayerID) && !(imported && !blank(run.SRCPlayerName)) {
		problems = append(problems, ProblemPlayerName)
	}

	rt := strings.ToLower(strings.TrimSpace(string(run.RunType)))
	switch rt {
	case "", string(model.RunTypeSolo), string(model.RunTypeCoop), "coop":
	default:
		problems = append(problems, ProblemRunType)
	}
	if RunType(rt) == model.RunTypeCoop &&
		blank(run.Player2Name) && blank(run.Player2ID) && !(imported && !blank(run.SRCPlayer2Name)) {
		problems = append(problems, ProblemPartnerName)
	}

	switch t := strings.TrimSpace(run.Time); {
	case t == "":
		problems = append(problems, ProblemTime)
	case !model.ValidTime(t):
		problems = append(problems, ProblemTimeFormat)
	case model.ParseTime(t) == 0:
		problems = append(problems, ProblemZeroTime)
	}

	switch d := stripClock(run.Date); {
	case d == "":
		problems = append(problems, ProblemDate)
	case !model.ValidDate(d):
		problems = append(problems, ProblemDateFormat)
	}

	if blank(run.Category) && !(imported && !blank(run.SRCCategoryName)) {
		problems = append(problems, ProblemCategory)
	}
	if blank(run.Platform) && !(imported && !blank(run.SRCPlatformName)) {
		problems = append(problems, ProblemPlatform)
	}

	lt := strings.ToLower(strings.TrimSpace(string(run.LeaderboardType)))
	if lt != "" && !model.LeaderboardType(lt).Valid() {
		problems = append(problems, ProblemLeaderboard)
	}
	if LeaderboardType(lt).LevelScoped() && blank(run.Level) && !(imported && !blank(run.SRCLevelName)) {
		problems = append(problems, ProblemLevel)
	}

	return problems
}

// Check wraps Validate into a ValidationError, nil when the run is acceptable.
func Check(run model.Run) error {
	if problems := Validate(run); len(problems) > 0 {
		return &model.ValidationError{Problems: problems}
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
