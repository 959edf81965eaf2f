// Package selection holds the per-vehicle image choices of a curation session.
//
// The current choices are published as immutable Snapshots. Every mutation
// copies the map, applies the change and swaps the pointer, so a Snapshot
// handed to a reader never changes underneath it.
package selection

import (
	"sync"
	"sync/atomic"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
)

// Snapshot is a read-only view of the selection map at one point in time.
type Snapshot struct {
	m map[models.VehicleKey]models.Selection
}

func (s Snapshot) Len() int {
	return len(s.m)
}

func (s Snapshot) Get(key models.VehicleKey) (models.Selection, bool) {
	sel, ok := s.m[key]
	return sel, ok
}

// Map returns a copy of the underlying map.
func (s Snapshot) Map() map[models.VehicleKey]models.Selection {
	out := make(map[models.VehicleKey]models.Selection, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// Store owns the selection map for one vehicle list. Readers never block;
// writers are serialised.
type Store struct {
	mu       sync.Mutex
	vehicles []models.VehicleRecord
	known    map[models.VehicleKey]struct{}
	current  atomic.Pointer[Snapshot]
}

func NewStore(vehicles []models.VehicleRecord) *Store {
	cp := make([]models.VehicleRecord, len(vehicles))
	copy(cp, vehicles)
	known := make(map[models.VehicleKey]struct{}, len(cp))
	for _, v := range cp {
		known[v.Key()] = struct{}{}
	}
	s := &Store{vehicles: cp, known: known}
	s.current.Store(&Snapshot{m: map[models.VehicleKey]models.Selection{}})
	return s
}

func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

func (s *Store) Len() int {
	return len(s.vehicles)
}

// Vehicles returns a copy of the vehicle list the store was built for.
func (s *Store) Vehicles() []models.VehicleRecord {
	out := make([]models.VehicleRecord, len(s.vehicles))
	copy(out, s.vehicles)
	return out
}

// KeyAt resolves a row index to its vehicle key.
func (s *Store) KeyAt(row int) (models.VehicleKey, bool) {
	if row < 0 || row >= len(s.vehicles) {
		return models.VehicleKey{}, false
	}
	return s.vehicles[row].Key(), true
}

// SetOverride records a manually supplied url. An empty url clears the entry.
func (s *Store) SetOverride(key models.VehicleKey, url string) Snapshot {
	return s.upsert(key, url, models.ProvenanceManualOverride)
}

func (s *Store) ClearOverride(key models.VehicleKey) Snapshot {
	return s.upsert(key, "", models.ProvenanceManualOverride)
}

// SelectFromCandidates records a url picked from the candidates shown for a
// vehicle. It has the same upsert semantics as SetOverride.
func (s *Store) SelectFromCandidates(key models.VehicleKey, url string, provenance models.Provenance) Snapshot {
	if !provenance.IsValid() {
		provenance = models.ProvenanceThirdPartyFetched
	}
	return s.upsert(key, url, provenance)
}

// SetOverrideAt is the row-index form of SetOverride. Out of range rows are
// ignored.
func (s *Store) SetOverrideAt(row int, url string) Snapshot {
	key, ok := s.KeyAt(row)
	if !ok {
		return s.Snapshot()
	}
	return s.SetOverride(key, url)
}

func (s *Store) SelectAt(row int, url string, provenance models.Provenance) Snapshot {
	key, ok := s.KeyAt(row)
	if !ok {
		return s.Snapshot()
	}
	return s.SelectFromCandidates(key, url, provenance)
}

func (s *Store) ClearAt(row int) Snapshot {
	key, ok := s.KeyAt(row)
	if !ok {
		return s.Snapshot()
	}
	return s.ClearOverride(key)
}

// Reset discards every selection.
func (s *Store) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := &Snapshot{m: map[models.VehicleKey]models.Selection{}}
	s.current.Store(next)
	return *next
}

// Finalize lists the selected vehicles in vehicle-list order.
func (s *Store) Finalize() []models.VehicleImage {
	return Finalize(s.vehicles, s.Snapshot())
}

func (s *Store) upsert(key models.VehicleKey, url string, provenance models.Provenance) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	if _, ok := s.known[key]; !ok {
		return *prev
	}
	existing, had := prev.m[key]
	if url == "" && !had {
		return *prev
	}
	if url != "" && had && existing.URL == url && existing.Provenance == provenance {
		return *prev
	}

	next := make(map[models.VehicleKey]models.Selection, len(prev.m)+1)
	for k, v := range prev.m {
		next[k] = v
	}
	if url == "" {
		delete(next, key)
	} else {
		next[key] = models.Selection{URL: url, Provenance: provenance}
	}
	snap := &Snapshot{m: next}
	s.current.Store(snap)
	return *snap
}

// Finalize pairs each selected vehicle with its url, in vehicle-list order.
// Vehicles without a selection are skipped, and a key listed more than once
// is emitted only at its first position.
func Finalize(vehicles []models.VehicleRecord, snap Snapshot) []models.VehicleImage {
	out := make([]models.VehicleImage, 0, snap.Len())
	seen := make(map[models.VehicleKey]struct{}, snap.Len())
	for _, v := range vehicles {
		key := v.Key()
		sel, ok := snap.Get(key)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.VehicleImage{Vehicle: v, URL: sel.URL})
	}
	return out
}
