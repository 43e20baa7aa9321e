package scoring

import (
	"strings"

	"github.com/okian/runboard/internal/domain/model"
)

// Legacy category name fragments, compared case-insensitively.
var (
	anyPercentNames    = []string{"any%"}              //nolint:gochecknoglobals // lookup table
	nocutsNoshipsNames = []string{"nocuts", "noships"} //nolint:gochecknoglobals // lookup table
)

// MigrateThresholds fills BonusThresholdSeconds on categories that still
// rely on the historical name convention. Categories that already carry an
// explicit threshold are left alone. It returns only the categories it changed.
func MigrateThresholds(categories []model.Reference, cfg model.PointsConfig) []model.Reference {
	var changed []model.Reference
	for _, c := range categories {
		if c.Kind != model.KindCategory || c.BonusThresholdSeconds > 0 {
			continue
		}
		threshold := LegacyThreshold(c.Name, cfg)
		if threshold <= 0 {
			continue
		}
		c.BonusThresholdSeconds = threshold
		changed = append(changed, c)
	}
	return changed
}

// LegacyThreshold returns the threshold the name convention assigns to a
// category display name, 0 when the name matches neither convention.
func LegacyThreshold(name string, cfg model.PointsConfig) int {
	lower := strings.ToLower(name)
	if containsAny(lower, nocutsNoshipsNames) {
		return cfg.NocutsNoshipsThreshold
	}
	if containsAny(lower, anyPercentNames) {
		return cfg.AnyPercentThreshold
	}
	return 0
}

func containsAny(s string, parts []string) bool {
	for _, p := range parts {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
