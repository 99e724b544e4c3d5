// Package conntable tracks live connections and the payload history received
// on each of them. A Table is owned by a single goroutine and does no locking.
package conntable

import (
	"sort"

	"github.com/google/uuid"
)

// Table maps connection IDs to their state.
type Table struct {
	conns   map[uuid.UUID]*ConnectionInfo
	nextSeq uint64
}

func NewTable() *Table {
	return &Table{
		conns: make(map[uuid.UUID]*ConnectionInfo),
	}
}

// Register adds ci and stamps its accept order.
func (t *Table) Register(ci *ConnectionInfo) {
	t.nextSeq++
	ci.Seq = t.nextSeq
	t.conns[ci.ID] = ci
}

// Unregister removes and returns the connection, or nil if it is unknown.
func (t *Table) Unregister(id uuid.UUID) *ConnectionInfo {
	ci, ok := t.conns[id]
	if !ok {
		return nil
	}
	delete(t.conns, id)
	return ci
}

func (t *Table) Get(id uuid.UUID) *ConnectionInfo {
	return t.conns[id]
}

func (t *Table) Len() int {
	return len(t.conns)
}

// ListActive returns all connections in accept order.
func (t *Table) ListActive() []*ConnectionInfo {
	result := make([]*ConnectionInfo, 0, len(t.conns))
	for _, ci := range t.conns {
		result = append(result, ci)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result
}

// Newest returns the most recently accepted connection, or nil when the table
// is empty.
func (t *Table) Newest() *ConnectionInfo {
	var newest *ConnectionInfo
	for _, ci := range t.conns {
		if newest == nil || ci.Seq > newest.Seq {
			newest = ci
		}
	}
	return newest
}
