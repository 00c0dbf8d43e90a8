// Package wire implements the length-prefixed msgpack frame codec used by
// the MsgPack writer transform: each frame is a big-endian uint32 byte
// count followed by exactly that many bytes of msgpack-encoded payload,
// so a reader never has to guess where one message ends and the next
// begins on a byte stream that has no message boundaries of its own.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxFrameSize caps the length prefix ReadFrame will accept, guarding
// against a corrupt or hostile stream driving an unbounded allocation.
const MaxFrameSize = 64 << 20 // 64 MiB

// Encode msgpack-marshals v and returns it as one length-prefixed frame,
// ready to be written to an io.Writer with a single Write call.
func Encode(v any) ([]byte, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds MaxFrameSize", len(payload))
	}
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	return frame, nil
}

// WriteFrame encodes v and writes it to w in a single call.
func WriteFrame(w io.Writer, v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadFrame reads one length-prefixed frame from r and unmarshals its
// payload into v.
func ReadFrame(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return fmt.Errorf("wire: frame of %d bytes exceeds MaxFrameSize", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("wire: read payload: %w", err)
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("wire: unmarshal: %w", err)
	}
	return nil
}
