package dnsproxy

import (
	"encoding/binary"
	"io"
)

// writeStatus writes the 4-byte big-endian status that opens every
// reply: 0 on success, a negative value on failure.
func writeStatus(w io.Writer, status int32) error {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(status))
	_, err := w.Write(b)
	return err
}

// writeFrame writes one length-prefixed data frame.
func writeFrame(w io.Writer, data []byte) error {
	b := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(b[:4], uint32(len(data)))
	copy(b[4:], data)
	_, err := w.Write(b)
	return err
}

// writeTerminator writes the zero-length frame that ends a reply.
func writeTerminator(w io.Writer) error {
	return writeFrame(w, nil)
}

// writeReply writes status followed by one frame per entry and the
// terminator, or just status and the terminator on failure.
func writeReply(w io.Writer, status int32, frames [][]byte) error {
	if err := writeStatus(w, status); err != nil {
		return err
	}
	if status != 0 {
		return writeTerminator(w)
	}
	for _, f := range frames {
		if err := writeFrame(w, f); err != nil {
			return err
		}
	}
	return writeTerminator(w)
}
