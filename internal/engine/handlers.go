package engine

import (
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/stlalpha/brepview/internal/conntable"
	"github.com/stlalpha/brepview/internal/display"
	"github.com/stlalpha/brepview/internal/logging"
	"github.com/stlalpha/brepview/internal/netsock"
	"github.com/stlalpha/brepview/internal/wire"
)

// step dispatches one task.
func (e *Engine) step(t Task) ([]Task, bool) {
	switch t.Kind {
	case KindAccept:
		return e.accept(t)
	case KindReceive:
		return e.receive(t)
	case KindSetDisplay:
		return e.setDisplay(t)
	case KindWaitConsumed:
		return e.waitConsumed(t)
	case KindClose:
		return e.closeConn(t)
	case KindFail:
		return e.fail(t)
	}
	log.Printf("ERROR: engine: dropping task of unknown kind %d", int(t.Kind))
	return nil, true
}

func (e *Engine) accept(t Task) ([]Task, bool) {
	sock, err := e.acceptor.TryAccept()
	if errors.Is(err, netsock.ErrWouldBlock) {
		return []Task{t}, false
	}
	if err != nil {
		return []Task{FailTask("accept", uuid.Nil, err)}, true
	}

	ci := conntable.New(uuid.New(), sock)
	e.table.Register(ci)
	e.state.SetCurrent(ci.ID)
	e.counters.accepted.Add(1)
	e.counters.active.Add(1)
	e.refreshStatus()
	log.Printf("INFO: engine: accepted connection %s from %s (now current, %d active)",
		shortID(ci.ID), ci.RemoteAddr, e.table.Len())

	// Accept re-arms itself so later clients are picked up too.
	return []Task{ReceiveTask(ci.ID), SetDisplayTask(ci.ID), AcceptTask()}, true
}

func (e *Engine) receive(t Task) ([]Task, bool) {
	ci := e.table.Get(t.Conn)
	if ci == nil {
		return nil, true
	}

	region := ci.Grow(e.chunkSize)
	n, err := ci.Sock.TryRecv(region)
	switch {
	case errors.Is(err, netsock.ErrWouldBlock):
		ci.Commit(0)
		return []Task{t}, false
	case err != nil:
		ci.Commit(0)
		return e.connError("recv", ci, err), true
	case n == 0:
		ci.Commit(0)
		log.Printf("INFO: engine: connection %s closed by peer", shortID(ci.ID))
		return []Task{CloseTask(ci.ID)}, true
	}
	ci.Commit(n)
	e.counters.bytesReceived.Add(uint64(n))
	return []Task{t}, true
}

func (e *Engine) setDisplay(t Task) ([]Task, bool) {
	ci := e.table.Get(t.Conn)
	if ci == nil {
		return nil, true
	}

	current := e.state.Current() == ci.ID
	progressed := false

	_, err := ci.NextFrame(e.maxFrame)
	switch {
	case err == nil:
		progressed = true
		e.counters.framesDecoded.Add(1)
		if e.state.Mode() == display.ModeAuto {
			ci.Latest()
		}
		if current {
			ci.Pending = true
		} else {
			e.counters.background.Add(1)
		}
		e.refreshStatus()
		logging.Debug("engine: connection %s decoded frame %d", shortID(ci.ID), len(ci.History))
	case errors.Is(err, wire.ErrNeedMoreData):
	default:
		return e.connError("decode", ci, err), true
	}

	if !current {
		ci.Pending = false
		return []Task{t}, progressed
	}
	if !ci.Pending {
		return []Task{t}, progressed
	}

	payload, ok := ci.Current()
	if !ok {
		ci.Pending = false
		return []Task{t}, progressed
	}
	f, err := e.state.Publish(display.Frame{
		Conn:    ci.ID,
		Remote:  ci.RemoteAddr,
		Index:   ci.Cursor,
		Total:   len(ci.History),
		Payload: payload,
	})
	if err != nil {
		// Another payload is in flight; publish once it is consumed.
		return []Task{t}, progressed
	}
	ci.Pending = false
	e.counters.published.Add(1)
	logging.Debug("engine: published #%d: connection %s entry %d/%d (%d bytes)",
		f.Seq, shortID(ci.ID), f.Index+1, f.Total, len(payload))
	return []Task{WaitConsumedTask(ci.ID)}, true
}

func (e *Engine) waitConsumed(t Task) ([]Task, bool) {
	if e.table.Get(t.Conn) == nil {
		return nil, true
	}
	if !e.state.Consumed() {
		return []Task{t}, false
	}
	return []Task{SetDisplayTask(t.Conn)}, true
}

func (e *Engine) closeConn(t Task) ([]Task, bool) {
	ci := e.table.Unregister(t.Conn)
	if ci == nil {
		return nil, true
	}
	if err := ci.Close(); err != nil {
		logging.Debug("engine: closing connection %s: %v", shortID(ci.ID), err)
	}
	log.Printf("INFO: engine: removed connection %s (%d frames, %d bytes)",
		shortID(ci.ID), len(ci.History), ci.BytesIn)

	if e.state.Current() == ci.ID {
		e.state.SetCurrent(uuid.Nil)
		if e.Policies().FallbackOnClose {
			if next := e.table.Newest(); next != nil {
				e.state.SetCurrent(next.ID)
				next.Pending = len(next.History) > 0
				log.Printf("INFO: engine: connection %s is now current", shortID(next.ID))
			}
		}
	}
	e.refreshStatus()
	e.counters.active.Add(-1)
	e.counters.closed.Add(1)
	return nil, true
}

func (e *Engine) fail(t Task) ([]Task, bool) {
	log.Printf("ERROR: engine: %s failed: %v", t.Op, t.Err)
	if e.fatal == nil {
		e.fatal = &FatalError{Op: t.Op, Conn: t.Conn, Err: t.Err}
	}
	e.sched.Stop()
	return nil, true
}

// connError applies the connection error policy to a receive or decode
// failure.
func (e *Engine) connError(op string, ci *conntable.ConnectionInfo, err error) []Task {
	if e.Policies().OnConnError == PolicyIsolate {
		log.Printf("WARN: engine: %s on connection %s failed, closing it: %v", op, shortID(ci.ID), err)
		return []Task{CloseTask(ci.ID)}
	}
	return []Task{FailTask(op, ci.ID, err)}
}

// applyCommand runs a consumer command on the worker goroutine.
func (e *Engine) applyCommand(cmd display.Command) {
	switch cmd.Kind {
	case display.CmdConsumed:
		e.state.AckConsumed()
		return
	case display.CmdSetMode:
		mode := display.ModeManual
		if cmd.Auto {
			mode = display.ModeAuto
		}
		e.state.SetMode(mode)
		logging.Debug("engine: draw mode %s", mode)
		if mode == display.ModeAuto {
			if ci := e.table.Get(e.state.Current()); ci != nil {
				before := ci.Cursor
				ci.Latest()
				if ci.Cursor != before && e.Policies().RedrawOnNavigate {
					ci.Pending = true
				}
			}
		}
	case display.CmdMovePrevious, display.CmdMoveNext:
		if e.state.Mode() == display.ModeAuto {
			logging.Debug("engine: ignoring %s in auto mode", cmd.Kind)
			return
		}
		ci := e.table.Get(e.state.Current())
		if ci == nil {
			return
		}
		var moved bool
		if cmd.Kind == display.CmdMovePrevious {
			moved = ci.MovePrevious()
		} else {
			moved = ci.MoveNext()
		}
		if !moved {
			return
		}
		if e.Policies().RedrawOnNavigate {
			ci.Pending = true
		}
	default:
		log.Printf("WARN: engine: unknown command %s", cmd.Kind)
		return
	}
	e.refreshStatus()
}
