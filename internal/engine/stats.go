package engine

import "sync/atomic"

// Stats is a point-in-time copy of the engine counters.
type Stats struct {
	Accepted         uint64 `json:"accepted"`
	Closed           uint64 `json:"closed"`
	Active           int64  `json:"active"`
	BytesReceived    uint64 `json:"bytes_received"`
	FramesDecoded    uint64 `json:"frames_decoded"`
	Published        uint64 `json:"published"`
	BackgroundFrames uint64 `json:"background_frames"`
	Parks            uint64 `json:"parks"`
}

type counters struct {
	accepted      atomic.Uint64
	closed        atomic.Uint64
	active        atomic.Int64
	bytesReceived atomic.Uint64
	framesDecoded atomic.Uint64
	published     atomic.Uint64
	background    atomic.Uint64
}

// Stats may be called from any goroutine.
func (e *Engine) Stats() Stats {
	return Stats{
		Accepted:         e.counters.accepted.Load(),
		Closed:           e.counters.closed.Load(),
		Active:           e.counters.active.Load(),
		BytesReceived:    e.counters.bytesReceived.Load(),
		FramesDecoded:    e.counters.framesDecoded.Load(),
		Published:        e.counters.published.Load(),
		BackgroundFrames: e.counters.background.Load(),
		Parks:            e.sched.Parks(),
	}
}
