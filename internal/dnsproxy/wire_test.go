package dnsproxy

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReplySuccessFramesThenTerminator(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReply(&buf, statusOK, [][]byte{[]byte("a"), []byte("bb")}))

	b := buf.Bytes()
	require.Equal(t, int32(0), int32(binary.BigEndian.Uint32(b[0:4])))

	off := 4
	readFrame := func() []byte {
		n := binary.BigEndian.Uint32(b[off : off+4])
		off += 4
		data := b[off : off+int(n)]
		off += int(n)
		return data
	}
	assert.Equal(t, "a", string(readFrame()))
	assert.Equal(t, "bb", string(readFrame()))
	assert.Equal(t, []byte{}, readFrame())
	assert.Equal(t, len(b), off)
}

func TestWriteReplyFailureSkipsFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReply(&buf, statusNotFound, [][]byte{[]byte("should not appear")}))

	b := buf.Bytes()
	require.Equal(t, statusNotFound, int32(binary.BigEndian.Uint32(b[0:4])))
	// status (4) + terminator frame length (4) == 8 bytes total.
	assert.Len(t, b, 8)
}
