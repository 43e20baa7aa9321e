// Package scoring maps a ranked run onto its point award.
package scoring

import (
	"github.com/okian/runboard/internal/domain/model"
)

// Input carries everything the award depends on.
type Input struct {
	Seconds      int
	CategoryID   string
	CategoryName string
	PlatformID   string
	PlatformName string

	// BonusThresholdSeconds is the category's explicit time-bonus cutoff.
	BonusThresholdSeconds int

	// Rank is the persisted podium rank, nil outside the podium.
	Rank    *int
	RunType model.RunType

	// BaseOnly restricts the award to the base amount. Set for obsolete
	// and unverified runs.
	BaseOnly bool
}

// Calculator computes the award of a single run.
type Calculator interface {
	Points(in Input, cfg model.PointsConfig) int
}

// Standard implements Calculator with the stock rules.
type Standard struct{}

// NewCalculator returns the stock calculator.
func NewCalculator() Standard { return Standard{} }

// Points implements Calculator.
func (Standard) Points(in Input, cfg model.PointsConfig) int {
	return Points(in, cfg)
}

// Points computes the award of a run. Co-op runs receive half of the solo
// award, rounded down, so both partners get the same share.
func Points(in Input, cfg model.PointsConfig) int {
	if !cfg.Enabled {
		return 0
	}

	total := max(cfg.BaseMultiplier, 0)
	if !in.BaseOnly {
		if QualifiesForThreshold(in.Seconds, in.BonusThresholdSeconds) {
			total += max(cfg.ThresholdBonus, 0)
		}
		if in.Rank != nil {
			total += max(cfg.RankBonus(*in.Rank), 0)
		}
	}

	if in.RunType == model.RunTypeCoop {
		total /= 2
	}
	return max(total, 0)
}

// QualifiesForThreshold reports whether an elapsed time earns the category
// time bonus. Unreadable (zero) times never qualify.
func QualifiesForThreshold(seconds, threshold int) bool {
	return threshold > 0 && seconds > 0 && seconds <= threshold
}

// InputFor builds the calculator input for a run given its category entity
// and the rank it holds after re-ranking.
func InputFor(run model.Run, category model.Reference, rank *int) Input {
	return Input{
		Seconds:               run.Seconds(),
		CategoryID:            run.Category,
		CategoryName:          firstNonEmpty(category.Name, run.SRCCategoryName),
		PlatformID:            run.Platform,
		PlatformName:          run.SRCPlatformName,
		BonusThresholdSeconds: category.BonusThresholdSeconds,
		Rank:                  rank,
		RunType:               run.RunType,
		BaseOnly:              run.IsObsolete || !run.Verified,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
