package vision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/dwell.report/internal/monitoring"
	"github.com/banshee-data/dwell.report/internal/timeutil"
)

// SessionNone is the state before a track's entry crossing; it appears only
// as the From side of the opening transition.
const SessionNone SessionStatus = "none"

// Snapshot is a consistent, read-only view of the engine published to
// persistence and dashboard collaborators. Readers never observe a
// partially processed frame.
type Snapshot struct {
	Timestamp      time.Time      `json:"timestamp"`
	Aggregates     AggregateState `json:"aggregates"`
	ActiveTracks   int            `json:"active_tracks"`
	ActiveSessions []SessionView  `json:"active_sessions"`
}

// SnapshotSink receives periodic snapshots. EventSinks that also implement
// SnapshotSink get them automatically from Run.
type SnapshotSink interface {
	HandleSnapshot(Snapshot)
}

// Engine is the tracking, counting, and dwell-session state machine. All
// mutation happens on the single-writer frame path (ProcessFrame, Tick,
// Close); Snapshot readers are serialized behind the same lock so they see
// whole frames only.
type Engine struct {
	mu sync.Mutex

	cfg       EngineConfig
	clock     timeutil.Clock
	tracker   *Tracker
	crossings *CrossingDetector
	sessions  *SessionManager
	agg       AggregateState
	sinks     []EventSink

	frames int64
	closed bool
}

// NewEngine validates the configuration and assembles the engine.
// Configuration errors are the only fatal errors in the system and only
// happen here, at startup.
func NewEngine(cfg EngineConfig, clock timeutil.Clock) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Engine{
		cfg:       cfg,
		clock:     clock,
		tracker:   NewTracker(cfg),
		crossings: NewCrossingDetector(cfg),
		sessions:  NewSessionManager(cfg, clock),
	}, nil
}

// AddSink registers an event feed consumer. Must be called before the
// first frame.
func (e *Engine) AddSink(s EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// ProcessFrame ingests one frame of detections. Frames must arrive through
// a single ingestion point; the engine processes each one fully before the
// next is accepted. Per-frame faults are logged and recovered; this method
// never fails.
func (e *Engine) ProcessFrame(dets []Detection, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		monitoring.Logf("frame dropped: engine closed")
		return
	}
	e.frames++

	dets = FilterByConfidence(dets, e.cfg.ConfidenceThreshold)
	updated, evicted := e.tracker.Update(dets, ts)

	// Tracks that vanished without an exit crossing force-close their
	// sessions as ambiguous.
	for _, ev := range evicted {
		if _, tr, ok := e.sessions.ForceClose(ev.TrackID, ts); ok {
			e.emitTransition(tr)
		}
	}

	for _, h := range updated {
		track := e.tracker.Get(h)
		dir, crossed := e.crossings.Observe(track)
		if !crossed {
			continue
		}
		e.applyCrossing(track.ID, dir, ts)
	}
}

// applyCrossing folds one line crossing into aggregates, then into session
// bookkeeping. The counters trust the detector: every crossing counts, so
// occupancy tracks the door even when tracking lost the person inside and
// the exit arrives on a fresh track ID. Session-layer mismatches (unknown
// exit, duplicate entry) are logged as protocol violations and skip only
// the session side.
func (e *Engine) applyCrossing(trackID int64, dir Direction, ts time.Time) {
	e.agg.Apply(dir, ts)
	e.emitCrossing(CrossingEvent{TrackID: trackID, Direction: dir, Timestamp: ts, OccupancyAfter: e.agg.CurrentOccupancy})

	switch dir {
	case DirectionEntry:
		s, err := e.sessions.RecordEntry(trackID, ts)
		if err != nil {
			e.violation(err)
			return
		}
		e.emitTransition(SessionTransition{SessionID: s.SessionID, TrackID: trackID, From: SessionNone, To: SessionActive, Timestamp: ts})

	case DirectionExit:
		_, tr, err := e.sessions.RecordExit(trackID, ts)
		if err != nil {
			e.violation(err)
			return
		}
		e.emitTransition(tr)
	}
}

func (e *Engine) violation(err error) {
	e.agg.ProtocolViolations++
	monitoring.Logf("protocol violation (event dropped): %v", err)
}

// Tick re-evaluates dwell thresholds against the clock. Driven by Run in
// production and called directly by tests with a mock clock.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, tr := range e.sessions.Tick(e.clock.Now()) {
		e.emitTransition(tr)
	}
}

// Snapshot returns an atomically published view of counters and open
// sessions.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	e.agg.RollDay(e.clock.Now())
	return Snapshot{
		Timestamp:      e.clock.Now(),
		Aggregates:     e.agg,
		ActiveTracks:   e.tracker.Len(),
		ActiveSessions: e.sessions.ActiveSessions(),
	}
}

// FramesProcessed returns the number of frames ingested since start.
func (e *Engine) FramesProcessed() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// Run drives periodic work until the context is cancelled: threshold
// escalation every TickInterval and snapshot delivery every
// SnapshotInterval to sinks that want them.
func (e *Engine) Run(ctx context.Context) {
	tick := e.clock.NewTicker(e.cfg.TickInterval)
	defer tick.Stop()
	snap := e.clock.NewTicker(e.cfg.SnapshotInterval)
	defer snap.Stop()

	for {
		select {
		case <-tick.C():
			e.Tick()
		case <-snap.C():
			e.deliverSnapshot()
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) deliverSnapshot() {
	e.mu.Lock()
	s := e.snapshotLocked()
	sinks := e.sinks
	e.mu.Unlock()

	for _, sink := range sinks {
		if ss, ok := sink.(SnapshotSink); ok {
			ss.HandleSnapshot(s)
		}
	}
}

// Close performs the clean-stop procedure: every live track is treated as
// evicted, force-closing its session, and a final snapshot is delivered.
// The engine accepts no frames afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true

	now := e.clock.Now()
	for _, ev := range e.tracker.EvictAll() {
		if _, tr, ok := e.sessions.ForceClose(ev.TrackID, now); ok {
			e.emitTransition(tr)
		}
	}
	// Sessions whose tracks are already gone (none expected, but a stray
	// open session must not survive shutdown).
	for _, tr := range e.sessions.CloseAll(now) {
		e.emitTransition(tr)
	}
	e.mu.Unlock()

	e.deliverSnapshot()
}

func (e *Engine) emitCrossing(ev CrossingEvent) {
	for _, s := range e.sinks {
		s.HandleCrossing(ev)
	}
}

func (e *Engine) emitTransition(tr SessionTransition) {
	for _, s := range e.sinks {
		s.HandleSessionTransition(tr)
	}
}
