package model

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/rowlog/rowlog/fio"
)

const (
	// LogFileName is the single log file inside a store directory.
	LogFileName = "LOG0"
)

// logCodec is the slice of the entry codec the file layer needs. Declared
// here to keep model from importing the codec package.
type logCodec interface {
	DecodeHeader(buf []byte, header *EntryHeader) (int64, error)
	DecodeEntry(buf []byte, entry *Entry) (int64, error)
}

// LogFile owns the append-only log. Entries are written at the cursor and
// never modified afterwards; readers address them by byte offset.
type LogFile struct {
	io    fio.IOManager
	codec logCodec

	maxHeaderSize int64

	// logical end of file, read by concurrent readers
	writeOffset int64
}

func OpenLogFile(ioManager fio.IOManager, c logCodec, maxHeaderSize int64) (*LogFile, error) {
	size, err := ioManager.Size()
	if err != nil {
		return nil, errors.Wrap(err, "stat log file")
	}

	return &LogFile{
		io:            ioManager,
		codec:         c,
		maxHeaderSize: maxHeaderSize,
		writeOffset:   size,
	}, nil
}

// Append writes one pre-encoded frame at the end of the log and returns
// the offset where it begins. Single writer only.
func (lf *LogFile) Append(data []byte) (int64, error) {
	offset := atomic.LoadInt64(&lf.writeOffset)

	n, err := lf.io.Write(data)
	if err != nil {
		return 0, errors.Wrapf(err, "append %d bytes at offset %d", len(data), offset)
	}

	atomic.StoreInt64(&lf.writeOffset, offset+int64(n))
	return offset, nil
}

// ReadEntry decodes one entry starting at offset, returning the entry and
// its total size on disk.
func (lf *LogFile) ReadEntry(offset int64) (*Entry, int64, error) {
	return lf.readEntry(offset, lf.Size())
}

func (lf *LogFile) readEntry(offset, limit int64) (*Entry, int64, error) {
	if offset < 0 || offset >= limit {
		return nil, 0, errors.Wrapf(ErrOffsetOutOfRange, "offset %d, log size %d", offset, limit)
	}

	headerLen := lf.maxHeaderSize
	if offset+headerLen > limit {
		headerLen = limit - offset
	}
	headerBuf := make([]byte, headerLen)
	if _, err := lf.io.Read(headerBuf, offset); err != nil {
		return nil, 0, errors.Wrapf(err, "read header at offset %d", offset)
	}

	var header EntryHeader
	if _, err := lf.codec.DecodeHeader(headerBuf, &header); err != nil {
		return nil, 0, err
	}

	if header.PayloadSize < 0 || header.PayloadSize > limit-offset-header.Size {
		return nil, 0, errors.Wrapf(ErrCorruptFraming, "entry at offset %d runs past log end %d", offset, limit)
	}
	total := header.Size + header.PayloadSize

	frame := make([]byte, total)
	if _, err := lf.io.Read(frame, offset); err != nil {
		return nil, 0, errors.Wrapf(err, "read entry at offset %d", offset)
	}

	var entry Entry
	consumed, err := lf.codec.DecodeEntry(frame, &entry)
	if err != nil {
		return nil, 0, err
	}
	return &entry, consumed, nil
}

// Size is the logical end of the log, the next append position.
func (lf *LogFile) Size() int64 {
	return atomic.LoadInt64(&lf.writeOffset)
}

// Truncate discards every byte at or past size. Recovery only.
func (lf *LogFile) Truncate(size int64) error {
	if err := lf.io.Truncate(size); err != nil {
		return errors.Wrapf(err, "truncate log to %d", size)
	}
	atomic.StoreInt64(&lf.writeOffset, size)
	return nil
}

func (lf *LogFile) Sync() error {
	return lf.io.Sync()
}

func (lf *LogFile) Close() error {
	return lf.io.Close()
}
