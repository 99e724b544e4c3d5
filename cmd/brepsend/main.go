// Command brepsend sends files to a running brepview as length-prefixed
// frames, one frame per file.
//
// Usage:
//
//	./brepsend [-host 127.0.0.1] [-port 12345] [-split N] [-delay 50ms] [-hold=false] [-framed] file...
//
// With no file arguments stdin is sent as a single frame. -framed treats each
// input as an already framed stream, such as a capture of an earlier session,
// and resends every frame in it. -split writes each
// frame in pieces of N bytes so the receiver has to reassemble partial
// frames. By default the connection stays open until interrupted, because
// the viewer drops frames it has not decoded yet when a sender disconnects.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/stlalpha/brepview/internal/logging"
	"github.com/stlalpha/brepview/internal/wire"
)

func main() {
	host := flag.String("host", "127.0.0.1", "Viewer address")
	port := flag.Int("port", 12345, "Viewer port")
	split := flag.Int("split", 0, "Write each frame in pieces of this many bytes (0 = whole frame)")
	delay := flag.Duration("delay", 0, "Pause between pieces and between frames")
	hold := flag.Bool("hold", true, "Keep the connection open after sending until interrupted")
	framed := flag.Bool("framed", false, "Inputs are length-prefixed frame streams rather than raw payloads")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logging.DebugEnabled = *debug || os.Getenv("DEBUG") == "1"

	payloads, err := readPayloads(flag.Args(), *framed)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Fatalf("FATAL: connecting to %s: %v", addr, err)
	}
	defer conn.Close()
	log.Printf("INFO: Connected to %s", addr)

	s := sender{w: conn, split: *split, delay: *delay}
	for i, p := range payloads {
		if err := s.send(ctx, p.data); err != nil {
			log.Fatalf("FATAL: sending %s: %v", p.name, err)
		}
		log.Printf("INFO: Sent frame %d/%d: %s (%d bytes)", i+1, len(payloads), p.name, len(p.data))
	}

	if *hold {
		log.Printf("INFO: All frames sent, holding the connection open (Ctrl+C to exit)")
		<-ctx.Done()
	}
}

type payload struct {
	name string
	data []byte
}

func readPayloads(args []string, framed bool) ([]payload, error) {
	if len(args) == 0 {
		if framed {
			return readFrames("stdin", os.Stdin)
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return []payload{{name: "stdin", data: data}}, nil
	}
	out := make([]payload, 0, len(args))
	for _, path := range args {
		if framed {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			frames, err := readFrames(path, f)
			f.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, frames...)
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, payload{name: path, data: data})
	}
	return out, nil
}

// readFrames splits a framed stream into its payloads. The stream must end on
// a frame boundary.
func readFrames(name string, r io.Reader) ([]payload, error) {
	var out []payload
	for i := 0; ; i++ {
		data, err := wire.ReadFrame(r)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: frame %d: %w", name, i, err)
		}
		out = append(out, payload{name: fmt.Sprintf("%s#%d", name, i), data: data})
	}
}

// sender writes frames, optionally in fixed-size pieces.
type sender struct {
	w     io.Writer
	split int
	delay time.Duration
}

func (s sender) send(ctx context.Context, data []byte) error {
	if s.split <= 0 {
		if err := wire.WriteFrame(s.w, data); err != nil {
			return err
		}
		return s.pause(ctx)
	}

	if uint64(len(data)) > wire.MaxPayload {
		return fmt.Errorf("%w: %d bytes", wire.ErrFrameTooLarge, len(data))
	}
	frame := wire.Encode(data)
	for off := 0; off < len(frame); off += s.split {
		end := min(off+s.split, len(frame))
		if _, err := s.w.Write(frame[off:end]); err != nil {
			return fmt.Errorf("writing bytes %d-%d: %w", off, end, err)
		}
		logging.Debug("wrote bytes %d-%d of %d", off, end, len(frame))
		if err := s.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s sender) pause(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
