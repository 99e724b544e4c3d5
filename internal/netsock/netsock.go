// Package netsock exposes non-blocking accept and receive primitives on top of
// the standard net package.
//
// Blocking Accept and Read calls are parked inside the Go runtime poller by
// one goroutine per socket. Their results are handed over through small
// buffered channels, so TryAccept and TryRecv never block: when nothing has
// arrived they return ErrWouldBlock. Each time new data or a new connection
// becomes available the notify callback passed to Listen is invoked, which lets
// a single worker sleep until a socket is actually ready.
package netsock

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"sync"
)

// ReadChunkSize is the size of each read issued by a connection's reader.
const ReadChunkSize = 4096

// Errors
var (
	ErrWouldBlock = errors.New("netsock: operation would block")
	ErrClosed     = errors.New("netsock: socket closed")
)

// SetupError reports a failure to resolve or bind the listening address.
type SetupError struct {
	Op   string // "resolve" or "listen"
	Addr string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("netsock: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Conn is a connection that can be polled without blocking.
type Conn interface {
	// TryRecv copies already-received bytes into p. It returns (0, nil) once
	// the peer has closed the stream and ErrWouldBlock when nothing is pending.
	TryRecv(p []byte) (int, error)
	RemoteAddr() string
	Close() error
}

type acceptResult struct {
	conn net.Conn
	err  error
}

// Listener is a TCP listener whose Accept never blocks.
type Listener struct {
	ln       net.Listener
	notify   func()
	accepted chan acceptResult
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// Listen resolves and binds host:port. Failures are returned as *SetupError.
// notify may be nil.
func Listen(host string, port int, notify func()) (*Listener, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, &SetupError{Op: "resolve", Addr: addr, Err: err}
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, &SetupError{Op: "listen", Addr: addr, Err: err}
	}
	return newListener(ln, notify), nil
}

func newListener(ln net.Listener, notify func()) *Listener {
	if notify == nil {
		notify = func() {}
	}
	l := &Listener{
		ln:       ln,
		notify:   notify,
		accepted: make(chan acceptResult, 1),
		done:     make(chan struct{}),
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
		}
		select {
		case l.accepted <- acceptResult{conn: conn, err: err}:
			l.notify()
		case <-l.done:
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil {
			return
		}
	}
}

// TryAccept returns the next pending connection, or ErrWouldBlock.
func (l *Listener) TryAccept() (Conn, error) {
	select {
	case res := <-l.accepted:
		if res.err != nil {
			return nil, res.err
		}
		return newConn(res.conn, l.notify), nil
	case <-l.done:
		return nil, ErrClosed
	default:
		return nil, ErrWouldBlock
	}
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting and waits for the accept goroutine to exit.
// Connections that were accepted but never collected are closed.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.ln.Close()
		l.wg.Wait()
		select {
		case res := <-l.accepted:
			if res.conn != nil {
				res.conn.Close()
			}
		default:
		}
	})
	return err
}

type chunk struct {
	data []byte
	err  error
}

// tcpConn pumps a net.Conn into a channel of chunks.
type tcpConn struct {
	c       net.Conn
	remote  string
	notify  func()
	chunks  chan chunk
	pending []byte
	eof     bool
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func newConn(c net.Conn, notify func()) *tcpConn {
	tc := &tcpConn{
		c:      c,
		remote: c.RemoteAddr().String(),
		notify: notify,
		chunks: make(chan chunk, 4),
		done:   make(chan struct{}),
	}
	tc.wg.Add(1)
	go tc.readLoop()
	return tc
}

func (tc *tcpConn) readLoop() {
	defer tc.wg.Done()
	buf := make([]byte, ReadChunkSize)
	for {
		n, err := tc.c.Read(buf)
		var c chunk
		if n > 0 {
			c.data = append([]byte(nil), buf[:n]...)
		}
		if err != nil {
			select {
			case <-tc.done:
				return
			default:
			}
			c.err = err
		}
		if c.data == nil && c.err == nil {
			continue
		}
		select {
		case tc.chunks <- c:
			tc.notify()
		case <-tc.done:
			return
		}
		if c.err != nil {
			return
		}
	}
}

func (tc *tcpConn) TryRecv(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(tc.pending) > 0 {
		n := copy(p, tc.pending)
		tc.pending = tc.pending[n:]
		return n, nil
	}
	if tc.eof {
		return 0, nil
	}
	select {
	case c := <-tc.chunks:
		n := copy(p, c.data)
		tc.pending = c.data[n:]
		if c.err != nil {
			if !errors.Is(c.err, io.EOF) {
				if n > 0 {
					// Deliver the bytes now; the error surfaces on the next call.
					tc.requeueErr(c.err)
					return n, nil
				}
				return 0, c.err
			}
			tc.eof = true
		}
		return n, nil
	case <-tc.done:
		return 0, ErrClosed
	default:
		return 0, ErrWouldBlock
	}
}

// requeueErr puts a read error back at the head of the stream. Only called by
// the owning worker after the read goroutine has exited, so the channel has room.
func (tc *tcpConn) requeueErr(err error) {
	select {
	case tc.chunks <- chunk{err: err}:
	default:
		log.Printf("WARN: netsock: dropped read error for %s: %v", tc.remote, err)
	}
}

func (tc *tcpConn) RemoteAddr() string {
	return tc.remote
}

// Close closes the socket and waits for its reader goroutine to exit.
func (tc *tcpConn) Close() error {
	var err error
	tc.once.Do(func() {
		close(tc.done)
		err = tc.c.Close()
		tc.wg.Wait()
	})
	return err
}
