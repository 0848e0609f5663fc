package sim

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dewiweb/holophonix-animator-sub000/core"
	"github.com/dewiweb/holophonix-animator-sub000/group"
	"github.com/dewiweb/holophonix-animator-sub000/internal/logging"
	"github.com/dewiweb/holophonix-animator-sub000/kb"
	"github.com/dewiweb/holophonix-animator-sub000/model"
)

var (
	// ErrGroupExists indicates a group with the same ID is already defined.
	ErrGroupExists = errors.New("group already exists")
	// ErrGroupNotFound indicates a requested group was not found.
	ErrGroupNotFound = errors.New("group not found")
	// ErrEmptyID indicates a track or group was given an empty ID.
	ErrEmptyID = errors.New("id must not be empty")
)

// MetricsRecorder receives per-tick engine measurements.
type MetricsRecorder interface {
	ObserveTick(d time.Duration, tracks, groups int)
	AddGroupWrites(group string, n int)
	IncRejected()
	ForgetGroup(group string)
}

// Engine owns the track registry and the groups and advances them one tick
// at a time.
type Engine struct {
	// mu is the coarse engine lock guarding groups and the clock. Take it
	// before the registry lock to keep the ordering Engine -> Registry.
	mu sync.Mutex

	registry *kb.Registry
	groups   map[string]*group.Group

	lastTime time.Duration
	ticked   bool

	log         logging.Logger
	metrics     MetricsRecorder
	tracer      trace.Tracer
	parallelism int
}

// Option customises Engine construction.
type Option func(*Engine)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer sets the tracer used for per-tick spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithParallelism bounds concurrent motion evaluation inside each group.
func WithParallelism(n int) Option {
	return func(e *Engine) { e.parallelism = n }
}

// NewEngine constructs an engine with an empty registry.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		registry:    kb.NewRegistry(),
		groups:      make(map[string]*group.Group),
		log:         logging.Noop(),
		tracer:      noop.NewTracerProvider().Tracer("sim"),
		parallelism: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Registry exposes the track registry for readers such as exporters.
func (e *Engine) Registry() *kb.Registry { return e.registry }

// ---------- Track mutations ----------

// AddTrack inserts a track at the origin. It returns false for an empty or
// duplicate ID.
func (e *Engine) AddTrack(id string) bool {
	if id == "" {
		return false
	}
	return e.registry.Add(id)
}

// RemoveTrack deletes a track. It returns false if the ID is unknown.
func (e *Engine) RemoveTrack(id string) bool {
	return e.registry.Remove(id)
}

// SetTrackPosition overwrites a track's position. Non-finite positions are
// refused.
func (e *Engine) SetTrackPosition(id string, pos core.Vector) bool {
	if !pos.IsFinite() {
		e.reject(context.Background(), id, pos)
		return false
	}
	return e.registry.SetPosition(id, pos)
}

// BindTrackMotion attaches a motion model to a track; nil unbinds.
func (e *Engine) BindTrackMotion(id string, m core.MotionModel) bool {
	return e.registry.BindMotion(id, m)
}

// SetTrackMetadata sets one metadata entry on a track.
func (e *Engine) SetTrackMetadata(id, key, value string) bool {
	return e.registry.SetMetadata(id, key, value)
}

// ---------- Group mutations ----------

// CreateGroup defines a new group. A nil pattern matches every track.
func (e *Engine) CreateGroup(id string, p group.Pattern) error {
	if id == "" {
		return fmt.Errorf("group: %w", ErrEmptyID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.groups[id]; exists {
		return fmt.Errorf("group %q: %w", id, ErrGroupExists)
	}
	g := group.New(id, p)
	g.SetParallelism(e.parallelism)
	e.groups[id] = g
	return nil
}

// RemoveGroup deletes a group. Its members keep their last positions.
func (e *Engine) RemoveGroup(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.groups[id]; !ok {
		return fmt.Errorf("group %q: %w", id, ErrGroupNotFound)
	}
	delete(e.groups, id)
	if e.metrics != nil {
		e.metrics.ForgetGroup(id)
	}
	return nil
}

// SetGroupRelation assigns a relation to one track of a group.
func (e *Engine) SetGroupRelation(groupID, trackID string, r group.Relation) error {
	return e.withGroup(groupID, func(g *group.Group) error {
		return g.SetRelation(trackID, r)
	})
}

// ClearGroupRelation resets a track's relation to None.
func (e *Engine) ClearGroupRelation(groupID, trackID string) error {
	return e.withGroup(groupID, func(g *group.Group) error {
		g.ClearRelation(trackID)
		return nil
	})
}

// SetGroupScale sets the factor applied to a group's resolved positions.
func (e *Engine) SetGroupScale(groupID string, f float64) error {
	return e.withGroup(groupID, func(g *group.Group) error { return g.SetScale(f) })
}

// SetGroupSpeed sets the factor applied to a group's effective time.
func (e *Engine) SetGroupSpeed(groupID string, f float64) error {
	return e.withGroup(groupID, func(g *group.Group) error { return g.SetSpeed(f) })
}

// SetGroupTimeOffset shifts a group's clock.
func (e *Engine) SetGroupTimeOffset(groupID string, d time.Duration) error {
	return e.withGroup(groupID, func(g *group.Group) error {
		g.SetTimeOffset(d)
		return nil
	})
}

func (e *Engine) withGroup(id string, fn func(*group.Group) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.groups[id]
	if !ok {
		return fmt.Errorf("group %q: %w", id, ErrGroupNotFound)
	}
	if err := fn(g); err != nil {
		return fmt.Errorf("group %q: %w", id, err)
	}
	return nil
}

// ---------- Queries ----------

// Track returns a copy of one track.
func (e *Engine) Track(id string) (kb.Track, bool) {
	return e.registry.Get(id)
}

// Positions returns every track's Cartesian position, ordered by ID.
func (e *Engine) Positions() []kb.TrackPosition {
	return e.registry.Positions()
}

// Spherical returns every track's (azimuth, elevation, distance).
func (e *Engine) Spherical() map[string]model.Spherical {
	positions := e.registry.Positions()
	res := make(map[string]model.Spherical, len(positions))
	for _, p := range positions {
		res[p.ID] = p.Position.Spherical()
	}
	return res
}

// GroupInfo summarises a group and its members as of the last tick.
type GroupInfo struct {
	model.GroupState
	Members []string `json:"members"`
}

// Group returns a summary of one group.
func (e *Engine) Group(id string) (GroupInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.groups[id]
	if !ok {
		return GroupInfo{}, false
	}
	return GroupInfo{GroupState: g.State(), Members: g.Members()}, true
}

// GroupIDs returns all group IDs in ascending order.
func (e *Engine) GroupIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Sorted(maps.Keys(e.groups))
}

// ---------- Tick ----------

// Advance runs one tick at absolute time t. It refuses to start when ctx is
// already done but, once started, always runs to completion. The whole
// tick is one registry critical section: group memberships are refreshed,
// tracks outside every group evaluate their own motion, then groups update
// in ID order. The resulting change set is published to registry
// subscribers and returned.
func (e *Engine) Advance(ctx context.Context, t time.Duration) (kb.ChangeSet, error) {
	if err := ctx.Err(); err != nil {
		return kb.ChangeSet{}, err
	}
	ctx, span := e.tracer.Start(ctx, "engine.advance",
		trace.WithAttributes(attribute.Int64("animator.time_ms", t.Milliseconds())))
	defer span.End()

	started := time.Now()

	e.mu.Lock()
	if e.ticked && t < e.lastTime {
		e.log.Warn(ctx, "engine time moved backwards",
			logging.Duration("previous", e.lastTime),
			logging.Duration("time", t),
		)
	}
	e.lastTime, e.ticked = t, true

	ids := slices.Sorted(maps.Keys(e.groups))
	writes := make([]int, len(ids))
	var (
		cs     kb.ChangeSet
		tracks int
	)
	e.registry.Tick(func(tx *kb.Tx) {
		store := &finiteStore{tx: tx, reject: func(id string, pos core.Vector) { e.reject(ctx, id, pos) }}

		grouped := make(map[string]struct{})
		for _, id := range ids {
			g := e.groups[id]
			g.UpdateMembers(tx)
			for _, m := range g.Members() {
				grouped[m] = struct{}{}
			}
		}

		all := tx.IDs()
		for _, id := range all {
			if _, ok := grouped[id]; ok {
				continue
			}
			if _, m, ok := tx.Lookup(id); ok && m != nil {
				store.SetPosition(id, m.Position(t))
			}
		}

		for i, id := range ids {
			writes[i] = e.groups[id].UpdatePositions(store, t)
		}

		cs = tx.TakeChanges()
		tracks = len(all)
	})
	groups := len(ids)
	e.mu.Unlock()

	e.registry.Publish(cs)

	elapsed := time.Since(started)
	if e.metrics != nil {
		e.metrics.ObserveTick(elapsed, tracks, groups)
		for i, id := range ids {
			e.metrics.AddGroupWrites(id, writes[i])
		}
	}
	span.SetAttributes(
		attribute.Int("animator.tracks", tracks),
		attribute.Int("animator.groups", groups),
		attribute.Int("animator.updated", len(cs.Updated)),
	)
	e.log.Debug(ctx, "tick complete",
		logging.Duration("time", t),
		logging.Int("tracks", tracks),
		logging.Int("groups", groups),
		logging.Int("updated", len(cs.Updated)),
		logging.Duration("took", elapsed),
	)
	return cs, nil
}

func (e *Engine) reject(ctx context.Context, id string, pos core.Vector) {
	e.log.Warn(ctx, "non-finite position rejected",
		logging.String("track_id", id),
		logging.Any("position", pos),
	)
	if e.metrics != nil {
		e.metrics.IncRejected()
	}
}

// finiteStore drops writes of non-finite positions so that NaN or Inf never
// reaches the registry.
type finiteStore struct {
	tx     *kb.Tx
	reject func(id string, pos core.Vector)
}

func (s *finiteStore) IDs() []string { return s.tx.IDs() }

func (s *finiteStore) Lookup(id string) (core.Vector, core.MotionModel, bool) {
	return s.tx.Lookup(id)
}

func (s *finiteStore) SetPosition(id string, pos core.Vector) bool {
	if !pos.IsFinite() {
		s.reject(id, pos)
		return false
	}
	return s.tx.SetPosition(id, pos)
}
