package model

import (
	"fmt"
	"time"
)

// Fields is a partial update document. Keys are the Field* constants; keys
// that are absent leave the stored value untouched.
type Fields map[string]any

// Run field names.
const (
	FieldPlayerID        = "player_id"
	FieldPlayer2ID       = "player2_id"
	FieldPlayerName      = "player_name"
	FieldPlayer2Name     = "player2_name"
	FieldCategory        = "category"
	FieldPlatform        = "platform"
	FieldLevel           = "level"
	FieldRunType         = "run_type"
	FieldLeaderboardType = "leaderboard_type"
	FieldTime            = "time"
	FieldDate            = "date"
	FieldVerified        = "verified"
	FieldVerifiedBy      = "verified_by"
	FieldIsObsolete      = "is_obsolete"
	FieldRank            = "rank"
	FieldPoints          = "points"
	FieldImportedFromSRC = "imported_from_src"
	FieldSRCRunID        = "src_run_id"
	FieldSRCCategoryName = "src_category_name"
	FieldSRCPlatformName = "src_platform_name"
	FieldSRCLevelName    = "src_level_name"
	FieldSRCPlayerName   = "src_player_name"
	FieldSRCPlayer2Name  = "src_player2_name"
	FieldSubmittedAt     = "submitted_at"
)

// Player field names.
const (
	FieldDisplayName = "display_name"
	FieldNameColor   = "name_color"
	FieldSRCUsername = "src_username"
	FieldTotalPoints = "total_points"
	FieldTotalRuns   = "total_runs"
)

// RunWrite pairs a run id with the fields to write.
type RunWrite struct {
	ID     string
	Fields Fields
}

// StandingFields builds the update for a run's derived rank and points.
func StandingFields(rank *int, points int) Fields {
	return Fields{FieldRank: rank, FieldPoints: points}
}

// TotalsFields builds the update for a player's derived totals.
func TotalsFields(totalPoints, totalRuns int) Fields {
	return Fields{FieldTotalPoints: totalPoints, FieldTotalRuns: totalRuns}
}

// RunFieldsOf converts a whole run into a full write document.
func RunFieldsOf(r Run) Fields {
	return Fields{
		FieldPlayerID:        r.PlayerID,
		FieldPlayer2ID:       r.Player2ID,
		FieldPlayerName:      r.PlayerName,
		FieldPlayer2Name:     r.Player2Name,
		FieldCategory:        r.Category,
		FieldPlatform:        r.Platform,
		FieldLevel:           r.Level,
		FieldRunType:         r.RunType,
		FieldLeaderboardType: r.LeaderboardType,
		FieldTime:            r.Time,
		FieldDate:            r.Date,
		FieldVerified:        r.Verified,
		FieldVerifiedBy:      r.VerifiedBy,
		FieldIsObsolete:      r.IsObsolete,
		FieldRank:            r.Rank,
		FieldPoints:          r.Points,
		FieldImportedFromSRC: r.ImportedFromSRC,
		FieldSRCRunID:        r.SRCRunID,
		FieldSRCCategoryName: r.SRCCategoryName,
		FieldSRCPlatformName: r.SRCPlatformName,
		FieldSRCLevelName:    r.SRCLevelName,
		FieldSRCPlayerName:   r.SRCPlayerName,
		FieldSRCPlayer2Name:  r.SRCPlayer2Name,
		FieldSubmittedAt:     r.SubmittedAt,
	}
}

// PlayerFieldsOf converts a whole player into a full write document.
func PlayerFieldsOf(p Player) Fields {
	return Fields{
		FieldDisplayName: p.DisplayName,
		FieldNameColor:   p.NameColor,
		FieldSRCUsername: p.SRCUsername,
		FieldTotalPoints: p.TotalPoints,
		FieldTotalRuns:   p.TotalRuns,
	}
}

// ApplyRun writes fields onto run. Unknown keys or values of the wrong type
// fail without modifying run.
func ApplyRun(run *Run, fields Fields) error {
	next := *run
	for key, value := range fields {
		if err := applyRunField(&next, key, value); err != nil {
			return err
		}
	}
	*run = next
	return nil
}

// ApplyPlayer writes fields onto player with the same rules as ApplyRun.
func ApplyPlayer(player *Player, fields Fields) error {
	next := *player
	for key, value := range fields {
		var err error
		switch key {
		case FieldDisplayName:
			err = setString(&next.DisplayName, key, value)
		case FieldNameColor:
			err = setString(&next.NameColor, key, value)
		case FieldSRCUsername:
			err = setString(&next.SRCUsername, key, value)
		case FieldTotalPoints:
			err = setInt(&next.TotalPoints, key, value)
		case FieldTotalRuns:
			err = setInt(&next.TotalRuns, key, value)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
		if err != nil {
			return err
		}
	}
	*player = next
	return nil
}

func applyRunField(r *Run, key string, value any) error { //nolint:gocyclo,cyclop // flat field switch
	switch key {
	case FieldPlayerID:
		return setString(&r.PlayerID, key, value)
	case FieldPlayer2ID:
		return setString(&r.Player2ID, key, value)
	case FieldPlayerName:
		return setString(&r.PlayerName, key, value)
	case FieldPlayer2Name:
		return setString(&r.Player2Name, key, value)
	case FieldCategory:
		return setString(&r.Category, key, value)
	case FieldPlatform:
		return setString(&r.Platform, key, value)
	case FieldLevel:
		return setString(&r.Level, key, value)
	case FieldRunType:
		switch v := value.(type) {
		case RunType:
			r.RunType = v
		case string:
			r.RunType = RunType(v)
		default:
			return fieldTypeError(key, value)
		}
	case FieldLeaderboardType:
		switch v := value.(type) {
		case LeaderboardType:
			r.LeaderboardType = v
		case string:
			r.LeaderboardType = LeaderboardType(v)
		default:
			return fieldTypeError(key, value)
		}
	case FieldTime:
		return setString(&r.Time, key, value)
	case FieldDate:
		return setString(&r.Date, key, value)
	case FieldVerified:
		return setBool(&r.Verified, key, value)
	case FieldVerifiedBy:
		return setString(&r.VerifiedBy, key, value)
	case FieldIsObsolete:
		return setBool(&r.IsObsolete, key, value)
	case FieldRank:
		switch v := value.(type) {
		case nil:
			r.Rank = nil
		case *int:
			if v == nil {
				r.Rank = nil
			} else {
				r.Rank = IntPtr(*v)
			}
		case int:
			r.Rank = IntPtr(v)
		default:
			return fieldTypeError(key, value)
		}
	case FieldPoints:
		return setInt(&r.Points, key, value)
	case FieldImportedFromSRC:
		return setBool(&r.ImportedFromSRC, key, value)
	case FieldSRCRunID:
		return setString(&r.SRCRunID, key, value)
	case FieldSRCCategoryName:
		return setString(&r.SRCCategoryName, key, value)
	case FieldSRCPlatformName:
		return setString(&r.SRCPlatformName, key, value)
	case FieldSRCLevelName:
		return setString(&r.SRCLevelName, key, value)
	case FieldSRCPlayerName:
		return setString(&r.SRCPlayerName, key, value)
	case FieldSRCPlayer2Name:
		return setString(&r.SRCPlayer2Name, key, value)
	case FieldSubmittedAt:
		v, ok := value.(time.Time)
		if !ok {
			return fieldTypeError(key, value)
		}
		r.SubmittedAt = v
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	return nil
}

func setString(dst *string, key string, value any) error {
	v, ok := value.(string)
	if !ok {
		return fieldTypeError(key, value)
	}
	*dst = v
	return nil
}

func setBool(dst *bool, key string, value any) error {
	v, ok := value.(bool)
	if !ok {
		return fieldTypeError(key, value)
	}
	*dst = v
	return nil
}

func setInt(dst *int, key string, value any) error {
	switch v := value.(type) {
	case int:
		*dst = v
	case int64:
		*dst = int(v)
	case int32:
		*dst = int(v)
	default:
		return fieldTypeError(key, value)
	}
	return nil
}

func fieldTypeError(key string, value any) error {
	return fmt.Errorf("%w: %s has type %T", ErrFieldType, key, value)
}
