package model

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/rowlog/rowlog/fio"
)

const (
	// IndexFileName is the single index file inside a store directory.
	IndexFileName = "IDX0"

	// IndexRecordSize is the fixed width of one index record: an 8-byte
	// big-endian log offset. The record's position is the row id.
	IndexRecordSize = 8
)

// IndexFile owns the append-only index: a dense on-disk array of log
// offsets, mirrored in memory so lookups never touch the disk. Record i
// exists iff all records 0..i exist.
type IndexFile struct {
	io fio.IOManager

	mu      sync.RWMutex
	offsets []int64
}

// OpenIndexFile reads the whole index into memory. A torn trailing record
// can only come from an interrupted append, so it is dropped on open; log
// recovery then validates what remains.
func OpenIndexFile(ioManager fio.IOManager) (*IndexFile, error) {
	size, err := ioManager.Size()
	if err != nil {
		return nil, errors.Wrap(err, "stat index file")
	}

	if torn := size % IndexRecordSize; torn != 0 {
		size -= torn
		if err = ioManager.Truncate(size); err != nil {
			return nil, errors.Wrap(err, "drop torn index record")
		}
	}

	offsets := make([]int64, 0, size/IndexRecordSize)
	if size > 0 {
		buf := make([]byte, size)
		if _, err = ioManager.Read(buf, 0); err != nil {
			return nil, errors.Wrap(err, "read index file")
		}
		for i := int64(0); i < size; i += IndexRecordSize {
			offsets = append(offsets, int64(binary.BigEndian.Uint64(buf[i:i+IndexRecordSize])))
		}
	}

	return &IndexFile{
		io:      ioManager,
		offsets: offsets,
	}, nil
}

// Append writes one record and returns its row id. The caller must only
// append offsets whose log entries are already durable.
func (idx *IndexFile) Append(offset int64) (RowID, error) {
	var record [IndexRecordSize]byte
	binary.BigEndian.PutUint64(record[:], uint64(offset))

	if _, err := idx.io.Write(record[:]); err != nil {
		return 0, errors.Wrapf(err, "append index record for offset %d", offset)
	}

	idx.mu.Lock()
	idx.offsets = append(idx.offsets, offset)
	row := RowID(len(idx.offsets) - 1)
	idx.mu.Unlock()

	return row, nil
}

// Lookup resolves a row id to its log offset.
func (idx *IndexFile) Lookup(row RowID) (int64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if row >= RowID(len(idx.offsets)) {
		return 0, errors.Wrapf(ErrRowNotFound, "row %d, index has %d records", row, len(idx.offsets))
	}
	return idx.offsets[row], nil
}

// Count is the number of committed records, which equals the number of
// live rows.
func (idx *IndexFile) Count() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return uint64(len(idx.offsets))
}

// NextRow is the row id the next Append will assign.
func (idx *IndexFile) NextRow() RowID {
	return RowID(idx.Count())
}

// TruncateTo discards trailing records beyond count. Recovery only.
func (idx *IndexFile) TruncateTo(count uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if count >= uint64(len(idx.offsets)) {
		return nil
	}
	if err := idx.io.Truncate(int64(count) * IndexRecordSize); err != nil {
		return errors.Wrapf(err, "truncate index to %d records", count)
	}
	idx.offsets = idx.offsets[:count]
	return nil
}

func (idx *IndexFile) Sync() error {
	return idx.io.Sync()
}

func (idx *IndexFile) Close() error {
	return idx.io.Close()
}
