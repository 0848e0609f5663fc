package kb

import (
	"slices"
	"sync"
	"time"

	"github.com/dewiweb/holophonix-animator-sub000/core"
)

// Registry is the in-memory, thread-safe store of all tracks. It is the
// single source of truth for positions read by exporters.
type Registry struct {
	mu sync.RWMutex

	tracks map[string]*Track

	// Pending change set since the last TakeChanges.
	changed map[string]struct{}
	removed map[string]struct{}

	subsMu  sync.Mutex
	subs    map[int]func(ChangeSet)
	nextSub int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tracks:  make(map[string]*Track),
		changed: make(map[string]struct{}),
		removed: make(map[string]struct{}),
		subs:    make(map[int]func(ChangeSet)),
	}
}

// Add inserts a track at the origin with no motion. It returns false and
// leaves the registry untouched if the ID already exists.
func (r *Registry) Add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tx().Add(id)
}

// Remove deletes a track. It returns false if the ID is unknown.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tx().Remove(id)
}

// Get returns a copy of the track with the given ID.
func (r *Registry) Get(id string) (Track, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tx().Get(id)
}

// Lookup returns a track's stored position and bound motion without
// copying its metadata.
func (r *Registry) Lookup(id string) (core.Vector, core.MotionModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tx().Lookup(id)
}

// Mutate runs fn against the stored track under the write lock. The ID
// cannot be changed through fn.
func (r *Registry) Mutate(id string, fn func(*Track)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tx().Mutate(id, fn)
}

// SetPosition overwrites a track's position.
func (r *Registry) SetPosition(id string, pos core.Vector) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tx().SetPosition(id, pos)
}

// BindMotion attaches a motion model to a track; nil unbinds.
func (r *Registry) BindMotion(id string, m core.MotionModel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tx().BindMotion(id, m)
}

// EvaluateMotion writes the bound motion's position at elapsed into the
// track. Tracks without motion are left as they are.
func (r *Registry) EvaluateMotion(id string, elapsed time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tx().EvaluateMotion(id, elapsed)
}

// SetMetadata sets one metadata entry on a track.
func (r *Registry) SetMetadata(id, key, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tx().SetMetadata(id, key, value)
}

// IDs returns all track IDs in ascending order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tx().IDs()
}

// Positions returns every track's position, ordered by ID.
func (r *Registry) Positions() []TrackPosition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tx().Positions()
}

// Len returns the number of tracks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tracks)
}

// Tick runs fn with the write lock held for its whole duration, so that
// a multi-step update is observed by readers as a single change.
func (r *Registry) Tick(fn func(tx *Tx)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.tx())
}

func (r *Registry) tx() *Tx { return &Tx{r: r} }

// Tx exposes registry operations to code that already holds the registry
// lock via Tick. A Tx must not be retained after Tick returns.
type Tx struct {
	r *Registry
}

func (tx *Tx) Add(id string) bool {
	r := tx.r
	if _, exists := r.tracks[id]; exists {
		return false
	}
	r.tracks[id] = &Track{ID: id}
	delete(r.removed, id)
	r.changed[id] = struct{}{}
	return true
}

func (tx *Tx) Remove(id string) bool {
	r := tx.r
	if _, ok := r.tracks[id]; !ok {
		return false
	}
	delete(r.tracks, id)
	delete(r.changed, id)
	r.removed[id] = struct{}{}
	return true
}

// Reset removes every track.
func (tx *Tx) Reset() {
	for id := range tx.r.tracks {
		tx.Remove(id)
	}
}

func (tx *Tx) Get(id string) (Track, bool) {
	t, ok := tx.r.tracks[id]
	if !ok {
		return Track{}, false
	}
	return t.clone(), true
}

func (tx *Tx) Lookup(id string) (core.Vector, core.MotionModel, bool) {
	t, ok := tx.r.tracks[id]
	if !ok {
		return core.Vector{}, nil, false
	}
	return t.Position, t.Motion, true
}

func (tx *Tx) Mutate(id string, fn func(*Track)) bool {
	t, ok := tx.r.tracks[id]
	if !ok {
		return false
	}
	before := t.Position
	fn(t)
	t.ID = id
	if t.Position != before {
		tx.r.changed[id] = struct{}{}
	}
	return true
}

func (tx *Tx) SetPosition(id string, pos core.Vector) bool {
	t, ok := tx.r.tracks[id]
	if !ok {
		return false
	}
	if t.Position != pos {
		t.Position = pos
		tx.r.changed[id] = struct{}{}
	}
	return true
}

func (tx *Tx) BindMotion(id string, m core.MotionModel) bool {
	t, ok := tx.r.tracks[id]
	if !ok {
		return false
	}
	t.Motion = m
	return true
}

func (tx *Tx) EvaluateMotion(id string, elapsed time.Duration) bool {
	t, ok := tx.r.tracks[id]
	if !ok {
		return false
	}
	if t.Motion == nil {
		return true
	}
	return tx.SetPosition(id, t.Motion.Position(elapsed))
}

func (tx *Tx) SetMetadata(id, key, value string) bool {
	t, ok := tx.r.tracks[id]
	if !ok {
		return false
	}
	if t.Metadata == nil {
		t.Metadata = make(map[string]string)
	}
	t.Metadata[key] = value
	return true
}

func (tx *Tx) IDs() []string {
	ids := make([]string, 0, len(tx.r.tracks))
	for id := range tx.r.tracks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (tx *Tx) Positions() []TrackPosition {
	ids := tx.IDs()
	res := make([]TrackPosition, 0, len(ids))
	for _, id := range ids {
		res = append(res, TrackPosition{ID: id, Position: tx.r.tracks[id].Position})
	}
	return res
}

// Tracks returns copies of every track, ordered by ID.
func (tx *Tx) Tracks() []Track {
	ids := tx.IDs()
	res := make([]Track, 0, len(ids))
	for _, id := range ids {
		res = append(res, tx.r.tracks[id].clone())
	}
	return res
}

// Tracks returns copies of every track, ordered by ID.
func (r *Registry) Tracks() []Track {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tx().Tracks()
}
