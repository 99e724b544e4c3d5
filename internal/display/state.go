// Package display holds the state shared between the network worker and the
// consumer that renders published payloads.
//
// The worker is the only writer of the current connection, the published
// frame and the consumed flag. The consumer reads them after a ready signal
// and talks back only through commands, which the worker drains and applies.
package display

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrInFlight is returned by Publish while the previous payload has not been
// acknowledged.
var ErrInFlight = errors.New("display: payload still in flight")

// Mode selects which history entry of the current connection is displayed.
type Mode int

const (
	// ModeAuto always shows the newest frame.
	ModeAuto Mode = iota
	// ModeManual shows the entry under the connection's cursor.
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "auto" or "manual", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return ModeAuto, nil
	case "manual":
		return ModeManual, nil
	}
	return ModeAuto, fmt.Errorf("display: unknown draw mode %q", s)
}

// Frame is one published payload together with where it came from.
type Frame struct {
	Conn      uuid.UUID
	Remote    string
	Index     int // Position in the connection's history
	Total     int // History length at publish time
	Payload   []byte
	Seq       uint64 // Publish counter, starting at 1
	Published time.Time
}

// ConnStatus describes one live connection for status displays.
type ConnStatus struct {
	ID      uuid.UUID
	Remote  string
	Frames  int
	Cursor  int
	Current bool
}

// CommandKind identifies a consumer request.
type CommandKind int

const (
	CmdConsumed CommandKind = iota
	CmdMovePrevious
	CmdMoveNext
	CmdSetMode
)

func (k CommandKind) String() string {
	switch k {
	case CmdConsumed:
		return "consumed"
	case CmdMovePrevious:
		return "move-previous"
	case CmdMoveNext:
		return "move-next"
	case CmdSetMode:
		return "set-mode"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is a request from the consumer to the worker.
type Command struct {
	Kind CommandKind
	Auto bool // CmdSetMode only
}

const commandBuffer = 64

// State is the synchronization surface between the worker and the consumer.
// Create one with NewState and hand Consumer() to the rendering side.
type State struct {
	current  Guarded[uuid.UUID]
	frame    Guarded[Frame]
	consumed atomic.Bool
	mode     Guarded[Mode]
	conns    Guarded[[]ConnStatus]

	seq      atomic.Uint64
	ready    chan struct{}
	commands chan Command
	done     chan struct{}
	once     sync.Once
}

func NewState(mode Mode) *State {
	s := &State{
		ready:    make(chan struct{}, 1),
		commands: make(chan Command, commandBuffer),
		done:     make(chan struct{}),
	}
	s.mode.Store(mode)
	s.consumed.Store(true)
	return s
}

// Current returns the connection whose frames are eligible for display, or
// uuid.Nil if there is none.
func (s *State) Current() uuid.UUID { return s.current.Load() }

func (s *State) SetCurrent(id uuid.UUID) { s.current.Store(id) }

func (s *State) Mode() Mode { return s.mode.Load() }

func (s *State) SetMode(m Mode) { s.mode.Store(m) }

// Consumed reports whether the last published payload has been acknowledged.
// It is true before the first publish.
func (s *State) Consumed() bool { return s.consumed.Load() }

// AckConsumed marks the in-flight payload as consumed.
func (s *State) AckConsumed() { s.consumed.Store(true) }

// Publish makes f the displayed frame and signals the consumer. It fails with
// ErrInFlight if the previous frame is still unacknowledged.
func (s *State) Publish(f Frame) (Frame, error) {
	if !s.consumed.CompareAndSwap(true, false) {
		return Frame{}, ErrInFlight
	}
	f.Seq = s.seq.Add(1)
	if f.Published.IsZero() {
		f.Published = time.Now()
	}
	s.frame.Store(f)
	select {
	case s.ready <- struct{}{}:
	default:
	}
	return f, nil
}

// Published returns the last published frame plus whether anything has been
// published yet.
func (s *State) Published() (Frame, bool) {
	f := s.frame.Load()
	return f, f.Seq > 0
}

// SetConnections replaces the connection status snapshot.
func (s *State) SetConnections(list []ConnStatus) {
	s.conns.Store(list)
}

// Connections returns a copy of the connection status snapshot.
func (s *State) Connections() []ConnStatus {
	list := s.conns.Load()
	out := make([]ConnStatus, len(list))
	copy(out, list)
	return out
}

// Commands is drained by the worker.
func (s *State) Commands() <-chan Command { return s.commands }

// Close tells the consumer no more frames will be published. Safe to call
// more than once.
func (s *State) Close() {
	s.once.Do(func() { close(s.done) })
}

// Consumer returns the handle the rendering side uses.
func (s *State) Consumer() *Consumer {
	return &Consumer{s: s}
}
