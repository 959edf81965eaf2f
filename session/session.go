// Package session keeps the per-operator curation state: the loaded
// vehicle list, its selections, candidate searches, an imported manifest
// and export jobs.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/candidates"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/selection"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrJobNotFound     = errors.New("export job not found")
	ErrExportRunning   = errors.New("an export is already running for this session")
	ErrNothingSelected = errors.New("no vehicle images selected")
	ErrSessionClosed   = errors.New("session closed")
)

type Session struct {
	ID        string
	CreatedAt time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	searcher candidates.Searcher
	logger   *logrus.Logger

	mu       sync.RWMutex
	vehicles []models.VehicleRecord
	source   string
	store    *selection.Store
	tracker  *candidates.Tracker
	baseline []models.VehicleImage
	imported []models.ImageCandidate
	jobs     map[string]*Job
	lastSeen time.Time
	closed   bool
}

func newSession(parent context.Context, id string, searcher candidates.Searcher, logger *logrus.Logger, now time.Time) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ID:        id,
		CreatedAt: now,
		ctx:       ctx,
		cancel:    cancel,
		searcher:  searcher,
		logger:    logger,
		store:     selection.NewStore(nil),
		jobs:      map[string]*Job{},
		lastSeen:  now,
	}
	s.tracker = s.newTracker()
	return s
}

// newTracker pairs a tracker with its own loader, so search results and
// failures are remembered for one vehicle list only.
func (s *Session) newTracker() *candidates.Tracker {
	return candidates.NewTracker(s.ctx, candidates.NewLoader(s.searcher).Load, s.logger)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

func (s *Session) Vehicles() []models.VehicleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vehicles
}

// Source names where the current vehicle list came from (file name or URL).
func (s *Session) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Session) Store() *selection.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

func (s *Session) Tracker() *candidates.Tracker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracker
}

// Row is one vehicle of the current list together with the store and
// tracker of that same list. Handlers mutate through it so a concurrent
// ReplaceVehicles cannot redirect a write to the next list.
type Row struct {
	Index   int
	Vehicle models.VehicleRecord
	Store   *selection.Store
	Tracker *candidates.Tracker
}

func (s *Session) Row(i int) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.vehicles) {
		return Row{}, false
	}
	return Row{Index: i, Vehicle: s.vehicles[i], Store: s.store, Tracker: s.tracker}, true
}

// Rows returns every row of the current list.
func (s *Session) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Row, len(s.vehicles))
	for i, v := range s.vehicles {
		out[i] = Row{Index: i, Vehicle: v, Store: s.store, Tracker: s.tracker}
	}
	return out
}

// ReplaceVehicles swaps in a new list. Selections and candidate searches of
// the previous list are discarded; the imported manifest is kept.
func (s *Session) ReplaceVehicles(list []models.VehicleRecord, source string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	old := s.tracker
	vehicles := append([]models.VehicleRecord(nil), list...)
	s.vehicles = vehicles
	s.source = source
	s.store = selection.NewStore(vehicles)
	s.tracker = s.newTracker()
	s.mu.Unlock()

	old.Close()
	return nil
}

func (s *Session) Baseline() []models.VehicleImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseline
}

// SetBaseline replaces any previously imported manifest.
func (s *Session) SetBaseline(pairs []models.VehicleImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = append([]models.VehicleImage(nil), pairs...)
	s.imported = candidates.ImportedCandidates(s.baseline)
}

// ImportedCandidate returns the manifest entry for a vehicle as a
// selectable candidate. A repeated key resolves to its first entry.
func (s *Session) ImportedCandidate(key models.VehicleKey) (models.ImageCandidate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.imported {
		if c.Key == key {
			return c, true
		}
	}
	return models.ImageCandidate{}, false
}

// ExportList is the imported manifest with the current selections merged
// over it, and the store those selections were read from.
func (s *Session) ExportList() ([]models.VehicleImage, *selection.Store) {
	s.mu.RLock()
	baseline, store := s.baseline, s.store
	s.mu.RUnlock()
	return selection.MergeBaseline(baseline, store.Finalize()), store
}

// StartJob registers a zip export and returns it with the list to export and
// a context that is cancelled when the job is cancelled or the session ends.
func (s *Session) StartJob() (*Job, context.Context, []models.VehicleImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, nil, ErrSessionClosed
	}
	if s.store.Snapshot().Len() == 0 {
		return nil, nil, nil, ErrNothingSelected
	}
	for _, j := range s.jobs {
		if !j.Status().Terminal() {
			return nil, nil, nil, ErrExportRunning
		}
	}

	list := selection.MergeBaseline(s.baseline, s.store.Finalize())
	ctx, cancel := context.WithCancel(s.ctx)
	job := newJob(cancel, s.store)
	s.jobs[job.ID] = job
	return job, ctx, list, nil
}

func (s *Session) Job(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j, nil
}

func (s *Session) Jobs() []JobSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobSnapshot, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Snapshot())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}

// Close cancels running jobs and searches and waits for the searches to stop.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	tracker := s.tracker
	s.mu.Unlock()

	for _, j := range jobs {
		_ = j.Cancel()
	}
	s.cancel()
	tracker.Close()
}
