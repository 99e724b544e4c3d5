package conntable

import (
	"bytes"
	"time"

	"github.com/google/uuid"

	"github.com/stlalpha/brepview/internal/netsock"
	"github.com/stlalpha/brepview/internal/wire"
)

// ConnectionInfo is the per-socket state kept by the worker: unparsed wire
// bytes, every payload decoded so far and the navigation cursor into them.
type ConnectionInfo struct {
	ID         uuid.UUID
	Sock       netsock.Conn // nil in tests that only exercise buffers
	RemoteAddr string
	AcceptedAt time.Time
	Seq        uint64 // Accept order, assigned by Table.Register

	Reserve []byte   // Unparsed bytes in arrival order
	History [][]byte // Decoded payloads, append-only
	Cursor  int      // Index into History; 0 while History is empty

	BytesIn uint64
	// Pending marks a payload that should be published as soon as nothing
	// else is in flight.
	Pending bool

	growBase int
}

// New creates a ConnectionInfo for a freshly accepted socket.
func New(id uuid.UUID, sock netsock.Conn) *ConnectionInfo {
	ci := &ConnectionInfo{
		ID:         id,
		Sock:       sock,
		AcceptedAt: time.Now(),
	}
	if sock != nil {
		ci.RemoteAddr = sock.RemoteAddr()
	}
	return ci
}

// Grow extends Reserve by n bytes and returns the new region for a receive
// to fill. Commit must follow with the number of bytes actually written.
func (ci *ConnectionInfo) Grow(n int) []byte {
	ci.growBase = len(ci.Reserve)
	if cap(ci.Reserve)-len(ci.Reserve) < n {
		grown := make([]byte, len(ci.Reserve), len(ci.Reserve)+n+len(ci.Reserve)/2)
		copy(grown, ci.Reserve)
		ci.Reserve = grown
	}
	ci.Reserve = ci.Reserve[:ci.growBase+n]
	return ci.Reserve[ci.growBase:]
}

// Commit shrinks Reserve back to the bytes that were received into the region
// returned by the last Grow. Commit(0) undoes the growth entirely.
func (ci *ConnectionInfo) Commit(received int) {
	if received < 0 {
		received = 0
	}
	if end := ci.growBase + received; end < len(ci.Reserve) {
		ci.Reserve = ci.Reserve[:end]
	}
	ci.BytesIn += uint64(received)
	ci.growBase = len(ci.Reserve)
}

// NextFrame decodes one frame from the front of Reserve, removes exactly its
// prefix and payload, and appends the payload to History. It returns
// wire.ErrNeedMoreData while the frame is incomplete.
func (ci *ConnectionInfo) NextFrame(limit uint32) ([]byte, error) {
	frame, rest, err := wire.TryDecodeLimit(ci.Reserve, limit)
	if err != nil {
		return nil, err
	}
	payload := bytes.Clone(frame)
	if payload == nil {
		payload = []byte{}
	}
	consumed := len(ci.Reserve) - len(rest)
	n := copy(ci.Reserve, ci.Reserve[consumed:])
	ci.Reserve = ci.Reserve[:n]
	ci.growBase = n
	ci.History = append(ci.History, payload)
	return payload, nil
}

// Latest moves the cursor to the newest payload.
func (ci *ConnectionInfo) Latest() {
	if len(ci.History) > 0 {
		ci.Cursor = len(ci.History) - 1
	}
}

// MovePrevious steps the cursor back one entry. It reports whether the
// cursor moved.
func (ci *ConnectionInfo) MovePrevious() bool {
	if ci.Cursor > 0 && len(ci.History) > 0 {
		ci.Cursor--
		return true
	}
	return false
}

// MoveNext steps the cursor forward one entry. It reports whether the cursor
// moved.
func (ci *ConnectionInfo) MoveNext() bool {
	if ci.Cursor < len(ci.History)-1 {
		ci.Cursor++
		return true
	}
	return false
}

// Current returns the payload under the cursor.
func (ci *ConnectionInfo) Current() ([]byte, bool) {
	if len(ci.History) == 0 {
		return nil, false
	}
	return ci.History[ci.Cursor], true
}

// Close releases the socket, if any.
func (ci *ConnectionInfo) Close() error {
	if ci.Sock == nil {
		return nil
	}
	return ci.Sock.Close()
}
