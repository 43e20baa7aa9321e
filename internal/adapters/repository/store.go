// Package repository defines the run store and its in-memory implementation.
package repository

import (
	"context"

	"github.com/okian/runboard/internal/domain/model"
)

// Stats summarizes store contents.
type Stats struct {
	Runs     int `json:"runs"`
	Verified int `json:"verified"`
	Players  int `json:"players"`
	Groups   int `json:"groups"`
}

// Store provides read/write access to runs, players and settings.
//
// PutRun and PutPlayer merge fields into the stored record and create it when
// absent. PutRuns only updates existing runs; missing ids are reported in a
// *model.PartialBatchFailure. Getters return *model.NotFoundError.
type Store interface {
	FindRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)
	GetRun(ctx context.Context, id string) (model.Run, error)
	PutRun(ctx context.Context, id string, fields model.Fields) error
	PutRuns(ctx context.Context, writes []model.RunWrite) error
	DeleteRun(ctx context.Context, id string) error

	GetPlayer(ctx context.Context, uid string) (model.Player, error)
	PutPlayer(ctx context.Context, uid string, fields model.Fields) error
	ListPlayers(ctx context.Context) ([]model.Player, error)

	GetPointsConfig(ctx context.Context) (model.PointsConfig, error)
	PutPointsConfig(ctx context.Context, cfg model.PointsConfig) error

	GetReference(ctx context.Context, kind model.ReferenceKind, id string) (model.Reference, error)
	PutReference(ctx context.Context, ref model.Reference) error
	ListReferences(ctx context.Context, kind model.ReferenceKind) ([]model.Reference, error)

	GetCheckpoint(ctx context.Context, name string) (model.Checkpoint, error)
	PutCheckpoint(ctx context.Context, name string, cp model.Checkpoint) error
	DeleteCheckpoint(ctx context.Context, name string) error

	Stats(ctx context.Context) (Stats, error)
	Close() error
}
