package session

import (
	"context"
	"sync"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/candidates"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultTTL = 120 * time.Minute

// Registry owns every live session. Sessions idle for longer than the TTL
// are closed by the janitor.
type Registry struct {
	ttl      time.Duration
	searcher candidates.Searcher
	logger   *logrus.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(parent context.Context, ttl time.Duration, searcher candidates.Searcher, logger *logrus.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ctx, cancel := context.WithCancel(parent)
	return &Registry{
		ttl:      ttl,
		searcher: searcher,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		sessions: map[string]*Session{},
	}
}

func (r *Registry) Create() *Session {
	s := newSession(r.ctx, uuid.NewString(), r.searcher, r.logger, r.now())
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{"session_id": s.ID}).Info("[session.created]")
	return s
}

// Get returns the session and marks it as active.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(r.now())
	return s, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	r.logger.WithFields(logrus.Fields{"session_id": id}).Info("[session.deleted]")
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle since before now-ttl and returns how many went.
func (r *Registry) Sweep(now time.Time) int {
	threshold := now.Add(-r.ttl)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idleSince().Before(threshold) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		r.logger.WithFields(logrus.Fields{
			"expired":   len(expired),
			"remaining": r.Len(),
		}).Info("[session.sweep]")
	}
	return len(expired)
}

// StartJanitor sweeps every interval until Close.
func (r *Registry) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep(r.now())
			case <-r.ctx.Done():
				return
			}
		}
	}()
}

// Close stops the janitor and closes every session.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()

	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
