package netsock

import (
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// eventually polls fn until it returns true or the deadline passes.
func eventually(t *testing.T, what string, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func listenLoopback(t *testing.T, notify func()) *Listener {
	t.Helper()
	l, err := Listen("127.0.0.1", 0, notify)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func dial(t *testing.T, l *Listener) net.Conn {
	t.Helper()
	c, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestTryAcceptWouldBlock(t *testing.T) {
	l := listenLoopback(t, nil)

	if _, err := l.TryAccept(); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock with no pending client, got %v", err)
	}
}

func TestTryAcceptAndRecv(t *testing.T) {
	notified := make(chan struct{}, 16)
	l := listenLoopback(t, func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	client := dial(t, l)

	var conn Conn
	eventually(t, "accept", func() bool {
		c, err := l.TryAccept()
		if errors.Is(err, ErrWouldBlock) {
			return false
		}
		if err != nil {
			t.Fatalf("TryAccept: %v", err)
		}
		conn = c
		return true
	})
	defer conn.Close()

	eventually(t, "notify after accept", func() bool { return len(notified) > 0 })

	buf := make([]byte, 16)
	if _, err := conn.TryRecv(buf); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock before any data, got %v", err)
	}

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatalf("client write: %v", err)
	}

	var got []byte
	eventually(t, "data", func() bool {
		n, err := conn.TryRecv(buf)
		if errors.Is(err, ErrWouldBlock) {
			return false
		}
		if err != nil {
			t.Fatalf("TryRecv: %v", err)
		}
		got = append(got, buf[:n]...)
		return len(got) >= 5
	})
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestTryRecvSmallBufferKeepsRemainder(t *testing.T) {
	l := listenLoopback(t, nil)
	client := dial(t, l)

	var conn Conn
	eventually(t, "accept", func() bool {
		c, err := l.TryAccept()
		conn = c
		return err == nil
	})
	defer conn.Close()

	client.Write([]byte("abcdef"))

	var got []byte
	small := make([]byte, 2)
	eventually(t, "all bytes", func() bool {
		n, err := conn.TryRecv(small)
		if err == nil {
			got = append(got, small[:n]...)
		}
		return len(got) == 6
	})
	if string(got) != "abcdef" {
		t.Errorf("got %q, want %q", got, "abcdef")
	}
}

func TestTryRecvPeerClose(t *testing.T) {
	l := listenLoopback(t, nil)
	client := dial(t, l)

	var conn Conn
	eventually(t, "accept", func() bool {
		c, err := l.TryAccept()
		conn = c
		return err == nil
	})
	defer conn.Close()

	client.Write([]byte("bye"))
	client.Close()

	buf := make([]byte, 16)
	var got []byte
	closed := false
	eventually(t, "peer close", func() bool {
		n, err := conn.TryRecv(buf)
		if errors.Is(err, ErrWouldBlock) {
			return false
		}
		if err != nil {
			t.Fatalf("TryRecv: %v", err)
		}
		if n == 0 {
			closed = true
			return true
		}
		got = append(got, buf[:n]...)
		return false
	})
	if !closed || string(got) != "bye" {
		t.Errorf("closed=%v got=%q", closed, got)
	}
	// Once closed, the connection keeps reporting end of stream.
	if n, err := conn.TryRecv(buf); n != 0 || err != nil {
		t.Errorf("after close: n=%d err=%v", n, err)
	}
}

func TestTryAcceptAfterClose(t *testing.T) {
	l, err := Listen("127.0.0.1", 0, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := l.TryAccept(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	// Closing twice is harmless.
	l.Close()
}

func TestListenSetupErrors(t *testing.T) {
	l := listenLoopback(t, nil)
	_, port, _ := net.SplitHostPort(l.Addr().String())
	p, _ := strconv.Atoi(port)

	_, err := Listen("127.0.0.1", p, nil)
	var se *SetupError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SetupError for a port in use, got %v", err)
	}
	if se.Op != "listen" {
		t.Errorf("expected op listen, got %q", se.Op)
	}

	_, err = Listen("127.0.0.1", 70000, nil)
	if !errors.As(err, &se) || se.Op != "resolve" {
		t.Errorf("expected resolve SetupError, got %v", err)
	}
}
