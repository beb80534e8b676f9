package model

import "github.com/pkg/errors"

// RowID identifies a committed entry. It is the position of the entry's
// record in the index file, assigned contiguously from 0.
type RowID uint64

type EntryKind byte

const (
	// KindData is a regular payload-carrying entry.
	KindData EntryKind = 0x00
	// KindSentinel terminates a batch of entries. Recovery treats the end
	// of the last sentinel as the high-water mark of log completeness.
	KindSentinel EntryKind = 0x01
)

func (k EntryKind) Valid() bool {
	return k == KindData || k == KindSentinel
}

// Entry is one self-delimiting unit in the log file.
type Entry struct {
	Kind    EntryKind
	Payload []byte
}

func (e *Entry) IsSentinel() bool {
	return e.Kind == KindSentinel
}

// EntryHeader is the decoded framing of an entry, without its payload.
type EntryHeader struct {
	Crc         uint32
	Kind        EntryKind
	PayloadSize int64
	Size        int64 // header bytes on disk
}

var (
	// ErrCorruptFraming reports entry bytes that fail to decode: a short
	// buffer, an unknown kind byte, or a checksum mismatch. It is local
	// to a single read and never fatal to the engine.
	ErrCorruptFraming = errors.New("rowlog: corrupt entry framing")

	ErrOffsetOutOfRange = errors.New("rowlog: offset is beyond the end of the log")
	ErrRowNotFound      = errors.New("rowlog: row id is not in the index")
)
