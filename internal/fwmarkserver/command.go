package fwmarkserver

import "encoding/binary"

// Command ids, matching the wire protocol's fixed values.
const (
	CmdOnAccept       int32 = 1
	CmdOnConnect      int32 = 2
	CmdSelectNetwork  int32 = 3
	CmdProtectFromVPN int32 = 4
)

// wireSize is the fixed record size a client must send: a 4-byte
// little-endian command id, a 2-byte little-endian netId, and 2 bytes
// of reserved padding.
const wireSize = 8

type command struct {
	cmdID int32
	netID uint16
}

func decodeCommand(b []byte) (command, bool) {
	if len(b) != wireSize {
		return command{}, false
	}
	return command{
		cmdID: int32(binary.LittleEndian.Uint32(b[0:4])),
		netID: binary.LittleEndian.Uint16(b[4:6]),
	}, true
}

// encodeCommand is used by tests to build request records; real
// clients live outside this daemon.
func encodeCommand(cmdID int32, netID uint16) []byte {
	b := make([]byte, wireSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(cmdID))
	binary.LittleEndian.PutUint16(b[4:6], netID)
	return b
}
