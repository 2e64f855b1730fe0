package dispatch

import (
	"encoding/binary"
	"fmt"
)

// RecordSize is the encoded size of a Record. It is far below PIPE_BUF, so
// each record is written to the pipe atomically.
const RecordSize = 24

// recordMagic tags every record written by this package.
const recordMagic uint32 = 0x1537d15c

// Record is what an emit writes into a channel's pipe.
//
// Layout (little endian):
//
//	0  magic    uint32
//	4  reserved uint32 (zero)
//	8  notifier uint64
//	16 channel  uint64
type Record struct {
	Magic    uint32
	Notifier uint64
	Channel  uint64
}

func newRecord(notifier, channel uint64) Record {
	return Record{Magic: recordMagic, Notifier: notifier, Channel: channel}
}

// Encode writes the record into a fixed-size buffer.
func (r Record) Encode() [RecordSize]byte {
	var b [RecordSize]byte
	binary.LittleEndian.PutUint32(b[0:4], r.Magic)
	binary.LittleEndian.PutUint64(b[8:16], r.Notifier)
	binary.LittleEndian.PutUint64(b[16:24], r.Channel)
	return b
}

// DecodeRecord parses the first RecordSize bytes of b.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) < RecordSize {
		return Record{}, fmt.Errorf("dispatch: record needs %d bytes, have %d", RecordSize, len(b))
	}
	return Record{
		Magic:    binary.LittleEndian.Uint32(b[0:4]),
		Notifier: binary.LittleEndian.Uint64(b[8:16]),
		Channel:  binary.LittleEndian.Uint64(b[16:24]),
	}, nil
}

// Valid reports whether the record carries the expected magic value.
func (r Record) Valid() bool {
	return r.Magic == recordMagic
}

func (r Record) String() string {
	return fmt.Sprintf("record{magic=%#x notifier=%d channel=%d}", r.Magic, r.Notifier, r.Channel)
}
