// Package engine runs the network worker: it accepts clients, accumulates
// their byte streams, decodes frames into per-connection history and
// publishes the current connection's frames to the display one at a time.
//
// All work happens on the goroutine that calls Run, as a queue of small
// tasks. Sockets are read by netsock's background readers, which wake the
// scheduler when something arrives, so an idle engine uses no CPU.
package engine

import (
	"context"
	"log"
	"net"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/stlalpha/brepview/internal/conntable"
	"github.com/stlalpha/brepview/internal/display"
	"github.com/stlalpha/brepview/internal/netsock"
)

// DefaultMaxFrameBytes bounds a single decoded payload.
const DefaultMaxFrameBytes = 64 << 20

// Acceptor yields new connections without blocking. *netsock.Listener
// implements it.
type Acceptor interface {
	TryAccept() (netsock.Conn, error)
	Close() error
}

// Config holds the settings fixed for the lifetime of an Engine.
type Config struct {
	// ChunkSize is how much the reserve buffer grows per receive attempt.
	ChunkSize int
	// MaxFrameBytes rejects longer length prefixes. 0 disables the check.
	MaxFrameBytes uint32
	Policies
}

// Engine owns the connection table and every socket. Only Run's goroutine
// touches them.
type Engine struct {
	chunkSize int
	maxFrame  uint32
	policies  atomic.Pointer[Policies]

	state    *display.State
	table    *conntable.Table
	acceptor Acceptor
	addr     net.Addr
	sched    *Scheduler

	running  atomic.Bool
	fatal    *FatalError
	counters counters
}

func New(cfg Config, state *display.State) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = netsock.ReadChunkSize
	}
	e := &Engine{
		chunkSize: cfg.ChunkSize,
		maxFrame:  cfg.MaxFrameBytes,
		state:     state,
		table:     conntable.NewTable(),
	}
	p := cfg.Policies
	e.policies.Store(&p)
	e.sched = NewScheduler(e.step, state.Commands(), e.applyCommand)
	return e
}

// Listen binds host:port and uses the listener as the acceptor. Resolve and
// bind failures are returned as *netsock.SetupError.
func (e *Engine) Listen(host string, port int) error {
	l, err := netsock.Listen(host, port, e.sched.Wake)
	if err != nil {
		return err
	}
	e.acceptor = l
	e.addr = l.Addr()
	log.Printf("INFO: engine: listening on %s", e.addr)
	return nil
}

// UseAcceptor installs a custom acceptor. It must call Wake whenever a
// connection or data becomes available.
func (e *Engine) UseAcceptor(a Acceptor) {
	e.acceptor = a
}

// Addr returns the address bound by Listen, or nil.
func (e *Engine) Addr() net.Addr { return e.addr }

// Wake unparks an idle worker.
func (e *Engine) Wake() { e.sched.Wake() }

// Policies returns the policies currently in effect.
func (e *Engine) Policies() Policies { return *e.policies.Load() }

// SetPolicies replaces the runtime policies. Safe to call while running.
func (e *Engine) SetPolicies(p Policies) {
	e.policies.Store(&p)
	log.Printf("INFO: engine: policies updated: redrawOnNavigate=%t connectionErrorPolicy=%s fallbackOnClose=%t",
		p.RedrawOnNavigate, p.OnConnError, p.FallbackOnClose)
}

// Stop makes Run return after the task in progress. Queued tasks are dropped.
func (e *Engine) Stop() { e.sched.Stop() }

// Run executes the worker until Stop, ctx cancellation or a fatal error. On
// return the acceptor and every connection are closed and the display state
// is closed. A fatal error is returned as *FatalError; a requested stop
// returns nil.
func (e *Engine) Run(ctx context.Context) error {
	if e.acceptor == nil {
		return ErrNoAcceptor
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	log.Printf("INFO: engine: worker started (chunk=%d, maxFrame=%d, mode=%s)",
		e.chunkSize, e.maxFrame, e.state.Mode())
	e.sched.Push(AcceptTask())
	discarded := e.sched.Run(ctx)
	e.shutdown(discarded)

	if e.fatal != nil {
		return e.fatal
	}
	return nil
}

func (e *Engine) shutdown(discarded int) {
	if err := e.acceptor.Close(); err != nil {
		log.Printf("WARN: engine: closing acceptor: %v", err)
	}
	abandoned := 0
	for _, ci := range e.table.ListActive() {
		e.table.Unregister(ci.ID)
		ci.Close()
		abandoned++
	}
	e.counters.active.Store(0)
	e.state.SetCurrent(uuid.Nil)
	e.refreshStatus()
	e.state.Close()
	log.Printf("INFO: engine: stopped, %d queued tasks discarded, %d connections abandoned", discarded, abandoned)
}

// refreshStatus publishes the connection list to the display.
func (e *Engine) refreshStatus() {
	current := e.state.Current()
	active := e.table.ListActive()
	list := make([]display.ConnStatus, 0, len(active))
	for _, ci := range active {
		list = append(list, display.ConnStatus{
			ID:      ci.ID,
			Remote:  ci.RemoteAddr,
			Frames:  len(ci.History),
			Cursor:  ci.Cursor,
			Current: ci.ID == current,
		})
	}
	e.state.SetConnections(list)
}
