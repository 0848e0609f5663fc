package kb

import (
	"slices"
	"strings"
)

// ChangeSet lists the tracks whose position changed, plus the tracks that
// were removed, since the previous TakeChanges. Added tracks appear in
// Updated.
type ChangeSet struct {
	Updated []TrackPosition
	Removed []string
}

// Empty reports whether nothing changed.
func (c ChangeSet) Empty() bool {
	return len(c.Updated) == 0 && len(c.Removed) == 0
}

// TakeChanges returns the pending change set and clears it. Both lists
// are ordered by ID.
func (r *Registry) TakeChanges() ChangeSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tx().TakeChanges()
}

func (tx *Tx) TakeChanges() ChangeSet {
	r := tx.r
	var cs ChangeSet
	for id := range r.changed {
		if t, ok := r.tracks[id]; ok {
			cs.Updated = append(cs.Updated, TrackPosition{ID: id, Position: t.Position})
		}
	}
	for id := range r.removed {
		cs.Removed = append(cs.Removed, id)
	}
	slices.SortFunc(cs.Updated, func(a, b TrackPosition) int {
		return strings.Compare(a.ID, b.ID)
	})
	slices.Sort(cs.Removed)
	clear(r.changed)
	clear(r.removed)
	return cs
}

// Subscribe registers a callback for published change sets. It returns an
// unsubscribe function.
func (r *Registry) Subscribe(fn func(ChangeSet)) (unsubscribe func()) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn

	return func() {
		r.subsMu.Lock()
		defer r.subsMu.Unlock()
		delete(r.subs, id)
	}
}

// Publish delivers cs to every subscriber, in subscription order. It must
// be called without holding the registry lock so that callbacks may read
// the registry.
func (r *Registry) Publish(cs ChangeSet) {
	r.subsMu.Lock()
	keys := make([]int, 0, len(r.subs))
	for k := range r.subs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	subs := make([]func(ChangeSet), 0, len(keys))
	for _, k := range keys {
		subs = append(subs, r.subs[k])
	}
	r.subsMu.Unlock()

	for _, sub := range subs {
		sub(cs)
	}
}
