// Package rowlog is a minimal persistent storage engine built on two
// append-only files: a log of framed entries and an index mapping row ids
// to log offsets. A row id is never stored; it is the position of its
// record in the index file.
package rowlog

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/rowlog/rowlog/codec"
	"github.com/rowlog/rowlog/fio"
	"github.com/rowlog/rowlog/model"
)

// RowID identifies a committed row, assigned contiguously from 0.
type RowID = model.RowID

// Engine owns a store directory: the LOG0 and IDX0 files and the flock
// guarding them. All mutation goes through a single writer lock; reads of
// committed rows run lock-free, since entries are immutable once written
// and index records are only published after their entry is durable.
type Engine struct {
	mu     sync.Mutex
	closed int32

	dirPath  string
	log      *model.LogFile
	index    *model.IndexFile
	fileLock fio.FileLocker

	options options
	logger  log.Logger
	metrics *engineMetrics
}

// Open opens or creates a store directory, runs recovery, and returns a
// ready engine. Any failure here is fatal: nothing half-open is left
// behind.
func Open(dirPath string, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(dirPath, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "create store directory %s", dirPath)
	}

	fileLock := fio.NewFlock(dirPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "lock store directory %s", dirPath)
	}
	if !locked {
		return nil, errors.Wrapf(ErrDirIsUsing, "directory %s", dirPath)
	}

	e := &Engine{
		dirPath: dirPath,
		options: o,
		logger:  o.logger,
		metrics: newEngineMetrics(o.registerer),
	}

	logIO, err := o.ioManagerCreator(filepath.Join(dirPath, model.LogFileName))
	if err != nil {
		_ = fileLock.Unlock()
		return nil, errors.Wrap(err, "open log file")
	}
	e.log, err = model.OpenLogFile(logIO, o.codec, codec.MaxHeaderSize)
	if err != nil {
		_ = logIO.Close()
		_ = fileLock.Unlock()
		return nil, err
	}

	idxIO, err := o.ioManagerCreator(filepath.Join(dirPath, model.IndexFileName))
	if err != nil {
		_ = logIO.Close()
		_ = fileLock.Unlock()
		return nil, errors.Wrap(err, "open index file")
	}
	e.index, err = model.OpenIndexFile(idxIO)
	if err != nil {
		_ = logIO.Close()
		_ = idxIO.Close()
		_ = fileLock.Unlock()
		return nil, err
	}

	e.fileLock = fileLock

	if err = e.recover(); err != nil {
		_ = e.log.Close()
		_ = e.index.Close()
		_ = fileLock.Unlock()
		return nil, err
	}

	level.Info(e.logger).Log("msg", "store opened", "dir", dirPath,
		"rows", e.index.Count(), "logSize", e.log.Size())

	return e, nil
}

// Put appends one payload as a new row and returns its id. The entry and
// its sentinel are made durable before the index record is written, so a
// crash at any point leaves either the whole row or no row.
func (e *Engine) Put(payload []byte) (RowID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isClosed() {
		return 0, ErrEngineClosed
	}

	offsets, err := e.appendDurable([][]byte{payload})
	if err != nil {
		return 0, err
	}

	rows, err := e.commitIndex(offsets)
	if err != nil {
		return 0, err
	}
	return rows[0], nil
}

// Get returns the payload of a committed row. It can run concurrently
// with Put: committed rows are immutable.
func (e *Engine) Get(row RowID) ([]byte, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}

	offset, err := e.index.Lookup(row)
	if err != nil {
		return nil, err
	}

	entry, _, err := e.log.ReadEntry(offset)
	if err != nil {
		e.metrics.readErrors.Inc()
		return nil, err
	}
	if entry.IsSentinel() {
		e.metrics.readErrors.Inc()
		return nil, errors.Wrapf(ErrCorruptFraming, "row %d resolves to a sentinel", row)
	}

	return entry.Payload, nil
}

// Count is the number of committed rows.
func (e *Engine) Count() uint64 {
	return e.index.Count()
}

// NextRow is the row id the next Put will assign.
func (e *Engine) NextRow() RowID {
	return e.index.NextRow()
}

// Sync forces both files durable.
func (e *Engine) Sync() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isClosed() {
		return ErrEngineClosed
	}
	if err := e.syncLog(); err != nil {
		return errors.Wrap(err, "sync log file")
	}
	return errors.Wrap(e.index.Sync(), "sync index file")
}

// Close flushes both files and releases the directory lock.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isClosed() {
		return ErrEngineClosed
	}
	atomic.StoreInt32(&e.closed, 1)

	var firstErr error
	for _, fn := range []func() error{
		e.log.Sync,
		e.index.Sync,
		e.log.Close,
		e.index.Close,
		e.fileLock.Unlock,
	} {
		if err := fn(); err != nil {
			level.Error(e.logger).Log("msg", "close store", "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (e *Engine) isClosed() bool {
	return atomic.LoadInt32(&e.closed) == 1
}

// appendDurable writes every payload as a data entry, terminates the
// batch with one sentinel, and syncs the log. Callers hold e.mu.
func (e *Engine) appendDurable(payloads [][]byte) ([]int64, error) {
	offsets := make([]int64, 0, len(payloads))

	for _, payload := range payloads {
		offset, err := e.appendEntry(&model.Entry{Kind: model.KindData, Payload: payload})
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, offset)
	}

	// batch terminator: recovery trusts the log up to here
	if _, err := e.appendEntry(&model.Entry{Kind: model.KindSentinel}); err != nil {
		return nil, err
	}

	if e.options.syncWrites {
		if err := e.syncLog(); err != nil {
			return nil, errors.Wrap(err, "sync log file")
		}
	}

	return offsets, nil
}

func (e *Engine) appendEntry(entry *model.Entry) (int64, error) {
	data, size, err := e.options.codec.EncodeEntry(entry)
	if err != nil {
		return 0, err
	}

	offset, err := e.log.Append(data)
	if err != nil {
		return 0, err
	}

	e.metrics.appends.Inc()
	e.metrics.appendedBytes.Add(float64(size))
	return offset, nil
}

// commitIndex publishes index records for log offsets that are already
// durable. Callers hold e.mu.
func (e *Engine) commitIndex(offsets []int64) ([]RowID, error) {
	rows := make([]RowID, 0, len(offsets))
	for _, offset := range offsets {
		row, err := e.index.Append(offset)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	if e.options.syncWrites {
		if err := e.index.Sync(); err != nil {
			return nil, errors.Wrap(err, "sync index file")
		}
	}
	return rows, nil
}

func (e *Engine) syncLog() error {
	now := time.Now()
	err := e.log.Sync()
	e.metrics.fsyncDuration.Observe(time.Since(now).Seconds())
	return err
}
