package rowlog

import "sync"

// Batch buffers payloads that must become visible together. Commit
// appends every entry, one sentinel, syncs the log once, and only then
// publishes the index records, so a crash mid-commit surfaces none of the
// batch after recovery.
type Batch struct {
	mu      sync.Mutex
	engine  *Engine
	pending [][]byte
}

func (e *Engine) NewBatch() *Batch {
	return &Batch{engine: e}
}

// Append buffers one payload. Nothing is written until Commit.
func (b *Batch) Append(payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == b.engine.options.maxBatchNum {
		return ErrExceedMaxBatchNum
	}

	b.pending = append(b.pending, append([]byte(nil), payload...))
	return nil
}

// Len is the number of buffered payloads.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Commit writes the batch and returns the assigned row ids, contiguous
// and in Append order. The batch is reusable afterwards.
func (b *Batch) Commit() ([]RowID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return nil, nil
	}

	e := b.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isClosed() {
		return nil, ErrEngineClosed
	}

	offsets, err := e.appendDurable(b.pending)
	if err != nil {
		return nil, err
	}

	rows, err := e.commitIndex(offsets)
	if err != nil {
		return nil, err
	}

	b.pending = b.pending[:0]
	return rows, nil
}
