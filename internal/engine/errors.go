package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNoAcceptor     = errors.New("engine: no acceptor attached")
	ErrAlreadyRunning = errors.New("engine: already running")
)

// FatalError is returned by Run when a Fail task halted the worker.
type FatalError struct {
	Op   string    // "accept", "recv" or "decode"
	Conn uuid.UUID // uuid.Nil for accept failures
	Err  error
}

func (e *FatalError) Error() string {
	if e.Conn == uuid.Nil {
		return fmt.Sprintf("engine: fatal %s error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("engine: fatal %s error on connection %s: %v", e.Op, e.Conn, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
