package postgres

// Schema creates every table the store uses. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	"id"                TEXT PRIMARY KEY,
	"player_id"         TEXT NOT NULL DEFAULT '',
	"player2_id"        TEXT NOT NULL DEFAULT '',
	"player_name"       TEXT NOT NULL DEFAULT '',
	"player2_name"      TEXT NOT NULL DEFAULT '',
	"category"          TEXT NOT NULL DEFAULT '',
	"platform"          TEXT NOT NULL DEFAULT '',
	"level"             TEXT NOT NULL DEFAULT '',
	"run_type"          TEXT NOT NULL DEFAULT '',
	"leaderboard_type"  TEXT NOT NULL DEFAULT '',
	"time"              TEXT NOT NULL DEFAULT '',
	"date"              TEXT NOT NULL DEFAULT '',
	"verified"          BOOLEAN NOT NULL DEFAULT FALSE,
	"verified_by"       TEXT NOT NULL DEFAULT '',
	"is_obsolete"       BOOLEAN NOT NULL DEFAULT FALSE,
	"rank"              INTEGER,
	"points"            INTEGER NOT NULL DEFAULT 0,
	"imported_from_src" BOOLEAN NOT NULL DEFAULT FALSE,
	"src_run_id"        TEXT NOT NULL DEFAULT '',
	"src_category_name" TEXT NOT NULL DEFAULT '',
	"src_platform_name" TEXT NOT NULL DEFAULT '',
	"src_level_name"    TEXT NOT NULL DEFAULT '',
	"src_player_name"   TEXT NOT NULL DEFAULT '',
	"src_player2_name"  TEXT NOT NULL DEFAULT '',
	"submitted_at"      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS runs_group_idx
	ON runs ("leaderboard_type", "category", "platform", "run_type", "level");
CREATE INDEX IF NOT EXISTS runs_player_idx ON runs ("player_id") WHERE "player_id" <> '';
CREATE INDEX IF NOT EXISTS runs_player2_idx ON runs ("player2_id") WHERE "player2_id" <> '';

CREATE TABLE IF NOT EXISTS players (
	"uid"          TEXT PRIMARY KEY,
	"display_name" TEXT NOT NULL DEFAULT '',
	"name_color"   TEXT NOT NULL DEFAULT '',
	"src_username" TEXT NOT NULL DEFAULT '',
	"total_points" INTEGER NOT NULL DEFAULT 0,
	"total_runs"   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS points_config (
	"id"                       SMALLINT PRIMARY KEY CHECK ("id" = 1),
	"base_multiplier"          INTEGER NOT NULL,
	"enabled"                  BOOLEAN NOT NULL,
	"any_percent_threshold"    INTEGER NOT NULL,
	"nocuts_noships_threshold" INTEGER NOT NULL,
	"first_place_bonus"        INTEGER NOT NULL,
	"second_place_bonus"       INTEGER NOT NULL,
	"third_place_bonus"        INTEGER NOT NULL,
	"threshold_bonus"          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_references (
	"kind"                    TEXT NOT NULL,
	"id"                      TEXT NOT NULL,
	"name"                    TEXT NOT NULL DEFAULT '',
	"bonus_threshold_seconds" INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY ("kind", "id")
);

CREATE TABLE IF NOT EXISTS sweep_checkpoints (
	"name"       TEXT PRIMARY KEY,
	"phase"      TEXT NOT NULL,
	"cursor"     TEXT NOT NULL DEFAULT '',
	"done"       INTEGER NOT NULL DEFAULT 0,
	"updated_at" TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
