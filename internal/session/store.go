package session

import (
	"sort"
	"sync"
)

// Store keeps the latest published snapshot of every session for consumers
// that join late (websocket clients, REST readers). Everything going in or
// out is cloned.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

func NewStore() *Store {
	return &Store{
		snapshots: make(map[string]*Snapshot),
	}
}

func (s *Store) Get(id string) (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

// GetAll returns every snapshot ordered by session id.
func (s *Store) GetAll() []*Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		result = append(result, snap.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SessionID < result[j].SessionID
	})
	return result
}

// Update replaces the stored snapshot for snap.SessionID. Older snapshots
// (by LastUpdated) never overwrite newer ones.
func (s *Store) Update(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.snapshots[snap.SessionID]; ok && snap.LastUpdated.Before(existing.LastUpdated) {
		return
	}
	s.snapshots[snap.SessionID] = snap.Clone()
}

// Publish satisfies monitor.Sink.
func (s *Store) Publish(snap *Snapshot) {
	s.Update(snap)
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
}

func (s *Store) RunningCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, snap := range s.snapshots {
		if snap.IsRunning() {
			count++
		}
	}
	return count
}
