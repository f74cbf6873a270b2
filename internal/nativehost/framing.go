package nativehost

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize is the largest message accepted from the client.
const MaxMessageSize = 1 << 20

// ErrMessageTooLarge is returned for a message above MaxMessageSize. Its body
// has been skipped, so the stream stays framed.
var ErrMessageTooLarge = errors.New("message too large")

// ReadMessage reads one length-prefixed message. The prefix is a 4-byte
// little-endian length. io.EOF means the client closed the pipe between
// messages.
func ReadMessage(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated length prefix: %w", err)
		}
		return nil, err
	}

	length := binary.LittleEndian.Uint32(prefix[:])
	if length > MaxMessageSize {
		if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
			return nil, fmt.Errorf("skip oversized message: %w", err)
		}
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("truncated message: %w", err)
	}
	return buf, nil
}

// WriteMessage encodes v as JSON and writes it with a length prefix.
func WriteMessage(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}
