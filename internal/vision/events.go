package vision

import "time"

// Direction of a line crossing.
type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

// CrossingEvent is the immutable record of one track's line transition.
// Each track produces at most one.
type CrossingEvent struct {
	TrackID        int64     `json:"track_id"`
	Direction      Direction `json:"direction"`
	Timestamp      time.Time `json:"timestamp"`
	OccupancyAfter int64     `json:"occupancy_after"`
}

// SessionTransition records one dwell-session status change for the
// append-only event feed.
type SessionTransition struct {
	SessionID string        `json:"session_id"`
	TrackID   int64         `json:"track_id"`
	From      SessionStatus `json:"from"`
	To        SessionStatus `json:"to"`
	Timestamp time.Time     `json:"timestamp"`
}

// EventSink receives the engine's append-only event feed. Sinks are invoked
// synchronously inside the frame loop and must return quickly; slow
// consumers should buffer internally.
type EventSink interface {
	HandleCrossing(CrossingEvent)
	HandleSessionTransition(SessionTransition)
}
