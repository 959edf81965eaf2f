package candidates

import (
	"context"
	"errors"
	"sync"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/sirupsen/logrus"
)

// LoadFunc resolves the candidates for one brand/model.
type LoadFunc func(ctx context.Context, key models.SearchKey) ([]string, error)

// Tracker holds the search state of every vehicle in a session. The first
// Ensure for a vehicle starts its search; later calls only report state.
// Every search ends Ready or Failed, and a failed vehicle is not searched
// again for the tracker's lifetime.
type Tracker struct {
	mu     sync.Mutex
	states map[models.VehicleKey]models.CandidateState
	load   LoadFunc
	logger *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

func NewTracker(parent context.Context, load LoadFunc, logger *logrus.Logger) *Tracker {
	ctx, cancel := context.WithCancel(parent)
	return &Tracker{
		states: map[models.VehicleKey]models.CandidateState{},
		load:   load,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Ensure returns the vehicle's current state, starting its search if this
// is the first request for it.
func (t *Tracker) Ensure(v models.VehicleRecord) models.CandidateState {
	key := v.Key()

	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.states[key]; ok {
		return st
	}
	if t.closed {
		st := models.FailedState("session closed")
		t.states[key] = st
		return st
	}

	st := models.PendingState()
	t.states[key] = st
	t.wg.Add(1)
	go t.run(v)
	return st
}

// State reports the vehicle's state without starting a search.
func (t *Tracker) State(key models.VehicleKey) (models.CandidateState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[key]
	return st, ok
}

func (t *Tracker) run(v models.VehicleRecord) {
	defer t.wg.Done()

	urls, err := t.load(t.ctx, v.SearchKey())

	var st models.CandidateState
	switch {
	case err == nil:
		st = models.ReadyState(urls)
	case errors.Is(err, context.Canceled):
		st = models.FailedState("search cancelled")
	default:
		st = models.FailedState(err.Error())
		t.logger.WithFields(logrus.Fields{
			"brand": v.Brand,
			"model": v.Model,
			"year":  v.Year,
			"error": err.Error(),
		}).Warn("[candidates.fetch] search failed")
	}

	t.mu.Lock()
	t.states[v.Key()] = st
	t.mu.Unlock()
}

// Wait blocks until every started search has settled.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Close cancels outstanding searches and waits for them to settle.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cancel()
	t.wg.Wait()
}
