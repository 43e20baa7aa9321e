package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/metrics"
)

const defaultMetricsUpdateInterval = 5 * time.Second

// MemoryStore is an in-process Store guarded by a single RWMutex.
// Records are copied on the way in and out.
type MemoryStore struct {
	mu          sync.RWMutex
	runs        map[string]model.Run
	players     map[string]model.Player
	references  map[model.ReferenceKind]map[string]model.Reference
	checkpoints map[string]model.Checkpoint
	points      model.PointsConfig
	closed      bool

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store with configuration options.
// The background gauge updater stops on Close or when ctx is done.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		runs:                  make(map[string]model.Run),
		players:               make(map[string]model.Player),
		references:            make(map[model.ReferenceKind]map[string]model.Reference),
		checkpoints:           make(map[string]model.Checkpoint),
		points:                model.DefaultPointsConfig(),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	s.mu.RLock()
	runs, players := len(s.runs), len(s.players)
	s.mu.RUnlock()

	metrics.UpdateRunsTotal(runs)
	metrics.UpdatePlayersTotal(players)
}

// Close stops the background updater. Later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stopChan)
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrClosed
	}
	return nil
}

// FindRuns returns the runs matching filter ordered by id.
func (s *MemoryStore) FindRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var out []model.Run
	for _, r := range s.runs {
		if filter.Matches(r) {
			out = append(out, cloneRun(r))
		}
	}
	slices.SortFunc(out, func(a, b model.Run) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// GetRun returns a run by id.
func (s *MemoryStore) GetRun(ctx context.Context, id string) (model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.Run{}, err
	}

	r, ok := s.runs[id]
	if !ok {
		return model.Run{}, model.NotFound("run", id)
	}
	return cloneRun(r), nil
}

// PutRun merges fields into the run, creating it when absent.
func (s *MemoryStore) PutRun(ctx context.Context, id string, fields model.Fields) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty run id", ErrInvalidID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	r, ok := s.runs[id]
	if !ok {
		r = model.Run{ID: id}
	}
	if err := model.ApplyRun(&r, fields); err != nil {
		return err
	}
	s.runs[id] = cloneRun(r)
	return nil
}

// PutRuns updates existing runs. Writes to unknown ids or with invalid
// fields are reported in a *model.PartialBatchFailure; the rest are applied.
func (s *MemoryStore) PutRuns(ctx context.Context, writes []model.RunWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	var pf model.PartialBatchFailure
	for _, w := range writes {
		r, ok := s.runs[w.ID]
		if !ok {
			pf.Failed = append(pf.Failed, w.ID)
			pf.Errors = append(pf.Errors, model.NotFound("run", w.ID).Error())
			continue
		}
		if err := model.ApplyRun(&r, w.Fields); err != nil {
			pf.Failed = append(pf.Failed, w.ID)
			pf.Errors = append(pf.Errors, fmt.Sprintf("run %s: %v", w.ID, err))
			continue
		}
		s.runs[w.ID] = cloneRun(r)
		pf.Updated++
	}
	if len(pf.Failed) > 0 {
		return &pf
	}
	return nil
}

// DeleteRun removes a run.
func (s *MemoryStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, ok := s.runs[id]; !ok {
		return model.NotFound("run", id)
	}
	delete(s.runs, id)
	return nil
}

// GetPlayer returns a player by uid.
func (s *MemoryStore) GetPlayer(ctx context.Context, uid string) (model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.Player{}, err
	}
	p, ok := s.players[uid]
	if !ok {
		return model.Player{}, model.NotFound("player", uid)
	}
	return p, nil
}

// PutPlayer merges fields into the player, creating it when absent.
func (s *MemoryStore) PutPlayer(ctx context.Context, uid string, fields model.Fields) error {
	if strings.TrimSpace(uid) == "" {
		return fmt.Errorf("%w: empty player id", ErrInvalidID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	p, ok := s.players[uid]
	if !ok {
		p = model.Player{UID: uid}
	}
	if err := model.ApplyPlayer(&p, fields); err != nil {
		return err
	}
	s.players[uid] = p
	return nil
}

// ListPlayers returns every player ordered by uid.
func (s *MemoryStore) ListPlayers(ctx context.Context) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	out := make([]model.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.Player) int { return strings.Compare(a.UID, b.UID) })
	return out, nil
}

// GetPointsConfig returns the points configuration.
func (s *MemoryStore) GetPointsConfig(ctx context.Context) (model.PointsConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.PointsConfig{}, err
	}
	return s.points, nil
}

// PutPointsConfig replaces the points configuration.
func (s *MemoryStore) PutPointsConfig(ctx context.Context, cfg model.PointsConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.points = cfg
	return nil
}

// GetReference returns a category, platform or level entity.
func (s *MemoryStore) GetReference(ctx context.Context, kind model.ReferenceKind, id string) (model.Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.Reference{}, err
	}
	ref, ok := s.references[kind][id]
	if !ok {
		return model.Reference{}, model.NotFound(string(kind), id)
	}
	return ref, nil
}

// PutReference creates or replaces a reference entity.
func (s *MemoryStore) PutReference(ctx context.Context, ref model.Reference) error {
	if !ref.Kind.Valid() || strings.TrimSpace(ref.ID) == "" {
		return fmt.Errorf("%w: reference %s/%q", ErrInvalidID, ref.Kind, ref.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.references[ref.Kind] == nil {
		s.references[ref.Kind] = make(map[string]model.Reference)
	}
	s.references[ref.Kind][ref.ID] = ref
	return nil
}

// ListReferences returns every entity of kind ordered by id.
func (s *MemoryStore) ListReferences(ctx context.Context, kind model.ReferenceKind) ([]model.Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	out := make([]model.Reference, 0, len(s.references[kind]))
	for _, ref := range s.references[kind] {
		out = append(out, ref)
	}
	slices.SortFunc(out, func(a, b model.Reference) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// GetCheckpoint returns a named sweep checkpoint.
func (s *MemoryStore) GetCheckpoint(ctx context.Context, name string) (model.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.Checkpoint{}, err
	}
	cp, ok := s.checkpoints[name]
	if !ok {
		return model.Checkpoint{}, model.NotFound("checkpoint", name)
	}
	return cp, nil
}

// PutCheckpoint stores a named sweep checkpoint.
func (s *MemoryStore) PutCheckpoint(ctx context.Context, name string, cp model.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.checkpoints[name] = cp
	return nil
}

// DeleteCheckpoint removes a named checkpoint. Missing ones are ignored.
func (s *MemoryStore) DeleteCheckpoint(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	delete(s.checkpoints, name)
	return nil
}

// Stats counts the stored records.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return Stats{}, err
	}

	st := Stats{Runs: len(s.runs), Players: len(s.players)}
	groups := make(map[grouping.Key]struct{})
	for _, r := range s.runs {
		if r.Verified {
			st.Verified++
			groups[grouping.KeyOf(r)] = struct{}{}
		}
	}
	st.Groups = len(groups)
	return st, nil
}

func cloneRun(r model.Run) model.Run {
	if r.Rank != nil {
		r.Rank = model.IntPtr(*r.Rank)
	}
	return r
}

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
