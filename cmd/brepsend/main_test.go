package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stlalpha/brepview/internal/wire"
)

// chunkWriter records every Write call separately.
type chunkWriter struct {
	writes [][]byte
}

func (c *chunkWriter) Write(p []byte) (int, error) {
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *chunkWriter) joined() []byte {
	return bytes.Join(c.writes, nil)
}

func TestSendWholeFrame(t *testing.T) {
	var w chunkWriter
	s := sender{w: &w}
	if err := s.send(context.Background(), []byte("box")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if diff := cmp.Diff(wire.Encode([]byte("box")), w.joined()); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestSendSplit(t *testing.T) {
	var w chunkWriter
	s := sender{w: &w, split: 3}
	if err := s.send(context.Background(), []byte("line")); err != nil {
		t.Fatalf("send: %v", err)
	}
	// 4-byte header + 4-byte payload in pieces of 3.
	if len(w.writes) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(w.writes))
	}
	frame, rest, err := wire.TryDecode(w.joined())
	if err != nil || string(frame) != "line" || len(rest) != 0 {
		t.Errorf("split frame does not decode: frame=%q rest=%d err=%v", frame, len(rest), err)
	}
}

func TestSendStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var w chunkWriter
	s := sender{w: &w, split: 2, delay: 1 << 30}
	if err := s.send(ctx, []byte("abcdef")); err == nil {
		t.Error("expected an error after cancel")
	}
	if len(w.writes) != 1 {
		t.Errorf("expected to stop after the first piece, got %d writes", len(w.writes))
	}
}

func TestReadPayloads(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.brep")
	b := filepath.Join(dir, "b.brep")
	os.WriteFile(a, []byte("first"), 0644)
	os.WriteFile(b, []byte("second"), 0644)

	got, err := readPayloads([]string{a, b}, false)
	if err != nil {
		t.Fatalf("readPayloads: %v", err)
	}
	if len(got) != 2 || string(got[0].data) != "first" || got[1].name != b {
		t.Errorf("unexpected payloads: %+v", got)
	}

	if _, err := readPayloads([]string{filepath.Join(dir, "missing")}, false); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestReadPayloadsFramed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.bin")
	var capture bytes.Buffer
	for _, p := range []string{"box", "", "line"} {
		if err := wire.WriteFrame(&capture, []byte(p)); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := os.WriteFile(path, capture.Bytes(), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := readPayloads([]string{path}, true)
	if err != nil {
		t.Fatalf("readPayloads: %v", err)
	}
	var texts []string
	for _, p := range got {
		texts = append(texts, string(p.data))
	}
	if diff := cmp.Diff([]string{"box", "", "line"}, texts); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	if got[2].name != path+"#2" {
		t.Errorf("unexpected frame name %q", got[2].name)
	}
}

func TestReadFramesTruncated(t *testing.T) {
	stream := wire.Encode([]byte("complete"))
	stream = append(stream, wire.Encode([]byte("cut short"))[:6]...)
	if _, err := readFrames("capture", bytes.NewReader(stream)); err == nil {
		t.Error("expected an error for a stream ending mid-frame")
	}
}
