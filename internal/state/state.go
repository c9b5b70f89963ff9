// Package state holds the list of upcoming events the display shows.
package state

import (
	"sync/atomic"
	"time"

	"inkuinfo/internal/model"
)

// Snapshot is one published list of upcoming events. Snapshots are never
// modified after publication; callers must not mutate Events.
type Snapshot struct {
	// Seq is the refresh token that produced this snapshot. Zero means the
	// store has not been published to yet.
	Seq       uint64
	UpdatedAt time.Time
	Events    []model.Event
}

// Store is the application state container. The zero value is not usable;
// use New.
type Store struct {
	cur  atomic.Pointer[Snapshot]
	next atomic.Uint64
}

// New returns a Store holding an empty snapshot.
func New() *Store {
	s := &Store{}
	s.cur.Store(&Snapshot{Events: []model.Event{}})
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() *Snapshot {
	return s.cur.Load()
}

// Token reserves the sequence number for a refresh that is about to start.
func (s *Store) Token() uint64 {
	return s.next.Add(1)
}

// Publish replaces the state with events if seq is newer than the current
// snapshot's token. It reports whether the replacement happened; a refresh
// that started earlier but finished later is discarded.
func (s *Store) Publish(seq uint64, events []model.Event, at time.Time) bool {
	cp := make([]model.Event, len(events))
	copy(cp, events)
	snap := &Snapshot{Seq: seq, UpdatedAt: at, Events: cp}

	for {
		cur := s.cur.Load()
		if seq <= cur.Seq {
			return false
		}
		if s.cur.CompareAndSwap(cur, snap) {
			return true
		}
	}
}
