package rowlog

import (
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/rowlog/rowlog/model"
)

// recover brings the log and index back to a consistent boundary after an
// unclean shutdown. It walks the index backward one record at a time: the
// last record is trusted only if the log decodes cleanly from its offset
// up to a sentinel. Everything past that sentinel is the product of an
// interrupted write and is discarded.
//
// Runs once inside Open, before any operation is served.
func (e *Engine) recover() error {
	if err := e.recoverLoop(); err != nil {
		return err
	}
	if err := e.log.Sync(); err != nil {
		return errors.Wrap(err, "sync log after recovery")
	}
	return errors.Wrap(e.index.Sync(), "sync index after recovery")
}

func (e *Engine) recoverLoop() error {
	for {
		n := e.index.Count()

		if n == 0 {
			// No committed rows. Keep the longest cleanly-decoded,
			// sentinel-terminated prefix; that may be the empty one.
			return e.discardTail(e.lastSentinelFrom(0))
		}

		last, err := e.index.Lookup(model.RowID(n - 1))
		if err != nil {
			return errors.Wrapf(ErrUnrecoverableStore, "lookup row %d: %v", n-1, err)
		}

		if boundary, ok := e.firstSentinelAfter(last); ok {
			return e.discardTail(boundary)
		}

		// The last index record points at data the log cannot vouch
		// for. Drop it and retry from the shortened index. Terminates:
		// the record count strictly decreases.
		if err = e.rollbackRow(n, last); err != nil {
			return err
		}
	}
}

// firstSentinelAfter scans forward from the offset of a committed data
// entry. It reports the position just past the first sentinel, and false
// when the scan hits corrupt framing or the end of the log first.
func (e *Engine) firstSentinelAfter(offset int64) (int64, bool) {
	sc := e.log.Scan(offset)
	first := true
	for sc.Next() {
		if sc.Entry().IsSentinel() {
			if first {
				// The index never points at a sentinel.
				return 0, false
			}
			return sc.Pos(), true
		}
		first = false
	}
	return 0, false
}

// lastSentinelFrom returns the end of the last sentinel in the longest
// cleanly-decoded prefix starting at offset, or offset when there is none.
func (e *Engine) lastSentinelFrom(offset int64) int64 {
	boundary := offset
	sc := e.log.Scan(offset)
	for sc.Next() {
		if sc.Entry().IsSentinel() {
			boundary = sc.Pos()
		}
	}
	return boundary
}

// discardTail truncates the log to boundary and syncs it. No-op when the
// log already ends there.
func (e *Engine) discardTail(boundary int64) error {
	size := e.log.Size()
	if boundary >= size {
		return nil
	}

	dropped := size - boundary
	if err := e.log.Truncate(boundary); err != nil {
		return errors.Wrapf(ErrUnrecoverableStore, "discard %d trailing log bytes: %v", dropped, err)
	}
	if err := e.log.Sync(); err != nil {
		return errors.Wrapf(ErrUnrecoverableStore, "sync truncated log: %v", err)
	}

	e.metrics.truncatedBytes.Add(float64(dropped))
	level.Warn(e.logger).Log("msg", "discarded trailing log bytes",
		"bytes", dropped, "boundary", boundary)
	return nil
}

// rollbackRow drops index record n-1 and the unverified log tail behind
// it.
func (e *Engine) rollbackRow(n uint64, last int64) error {
	target := last
	if size := e.log.Size(); size < target {
		// The index claims more log than exists.
		target = size
	}
	if err := e.log.Truncate(target); err != nil {
		return errors.Wrapf(ErrUnrecoverableStore, "truncate log to %d: %v", target, err)
	}
	if err := e.index.TruncateTo(n - 1); err != nil {
		return errors.Wrapf(ErrUnrecoverableStore, "truncate index to %d records: %v", n-1, err)
	}

	e.metrics.droppedRows.Inc()
	level.Warn(e.logger).Log("msg", "rolled back unverified row", "row", n-1, "offset", last)
	return nil
}
