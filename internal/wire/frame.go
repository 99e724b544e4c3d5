// Package wire implements the length-prefixed framing used between senders
// and the viewer: a 4-byte big-endian payload length followed by exactly that
// many payload bytes. There is no type tag, checksum or handshake.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the size of the length prefix in bytes.
const HeaderSize = 4

// MaxPayload is the largest payload the length prefix can describe.
const MaxPayload = math.MaxUint32

// Errors
var (
	ErrNeedMoreData  = errors.New("wire: need more data")
	ErrFrameTooLarge = errors.New("wire: frame exceeds size limit")
)

// Encode prepends the network-order length prefix to payload.
// Payloads longer than MaxPayload are the caller's responsibility; use
// WriteFrame for a checked write.
func Encode(payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out
}

// TryDecode extracts one frame from the front of buf.
//
// It returns ErrNeedMoreData while the prefix or the payload is incomplete.
// On success frame and rest are both subslices of buf; buf itself is never
// modified, so back-to-back frames are decoded by calling TryDecode on rest.
func TryDecode(buf []byte) (frame, rest []byte, err error) {
	return TryDecodeLimit(buf, 0)
}

// TryDecodeLimit is TryDecode with an upper bound on the declared payload
// length. A limit of 0 disables the check. ErrFrameTooLarge is returned as
// soon as the prefix is readable, without waiting for the payload.
func TryDecodeLimit(buf []byte, limit uint32) (frame, rest []byte, err error) {
	if len(buf) < HeaderSize {
		return nil, buf, ErrNeedMoreData
	}
	n := binary.BigEndian.Uint32(buf)
	if limit > 0 && n > limit {
		return nil, buf, fmt.Errorf("%w: %d bytes declared, limit %d", ErrFrameTooLarge, n, limit)
	}
	end := uint64(HeaderSize) + uint64(n)
	if uint64(len(buf)) < end {
		return nil, buf, ErrNeedMoreData
	}
	return buf[HeaderSize:end:end], buf[end:], nil
}

// WriteFrame writes payload to w as a single frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one frame from r. It blocks, so it is only meant for
// tools and tests; the engine decodes with TryDecode.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.BigEndian.Uint32(hdr[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return payload, nil
}
