package model

// Default points configuration.
const (
	DefaultBaseMultiplier   = 10
	DefaultFirstPlaceBonus  = 60
	DefaultSecondPlaceBonus = 40
	DefaultThirdPlaceBonus  = 20
	DefaultThresholdBonus   = 20
)

// PointsConfig is the singleton configuration of the points calculator.
type PointsConfig struct {
	BaseMultiplier int  `json:"base_multiplier" koanf:"base_multiplier"`
	Enabled        bool `json:"enabled" koanf:"enabled"`

	// Legacy thresholds in seconds. They only feed the threshold migration;
	// runtime scoring reads Reference.BonusThresholdSeconds.
	AnyPercentThreshold    int `json:"any_percent_threshold" koanf:"any_percent_threshold"`
	NocutsNoshipsThreshold int `json:"nocuts_noships_threshold" koanf:"nocuts_noships_threshold"`

	FirstPlaceBonus  int `json:"first_place_bonus" koanf:"first_place_bonus"`
	SecondPlaceBonus int `json:"second_place_bonus" koanf:"second_place_bonus"`
	ThirdPlaceBonus  int `json:"third_place_bonus" koanf:"third_place_bonus"`
	ThresholdBonus   int `json:"threshold_bonus" koanf:"threshold_bonus"`
}

// DefaultPointsConfig returns an enabled configuration with the stock values.
func DefaultPointsConfig() PointsConfig {
	return PointsConfig{
		BaseMultiplier:   DefaultBaseMultiplier,
		Enabled:          true,
		FirstPlaceBonus:  DefaultFirstPlaceBonus,
		SecondPlaceBonus: DefaultSecondPlaceBonus,
		ThirdPlaceBonus:  DefaultThirdPlaceBonus,
		ThresholdBonus:   DefaultThresholdBonus,
	}
}

// BonusesOrdered reports whether a better podium rank always earns a
// strictly larger bonus.
func (c PointsConfig) BonusesOrdered() bool {
	return c.FirstPlaceBonus > c.SecondPlaceBonus && c.SecondPlaceBonus > c.ThirdPlaceBonus
}

// RankBonus returns the bonus for a podium rank, 0 otherwise.
func (c PointsConfig) RankBonus(rank int) int {
	switch rank {
	case 1:
		return c.FirstPlaceBonus
	case 2:
		return c.SecondPlaceBonus
	case 3:
		return c.ThirdPlaceBonus
	default:
		return 0
	}
}
