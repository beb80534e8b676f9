package rowlog

import (
	"github.com/pkg/errors"

	"github.com/rowlog/rowlog/model"
)

var (
	// Read-path errors, re-exported so callers only need this package.
	ErrCorruptFraming   = model.ErrCorruptFraming
	ErrOffsetOutOfRange = model.ErrOffsetOutOfRange
	ErrRowNotFound      = model.ErrRowNotFound

	ErrDirIsUsing   = errors.New("rowlog: store directory is locked by another process")
	ErrEngineClosed = errors.New("rowlog: engine is closed")

	// ErrUnrecoverableStore means recovery exhausted every rollback
	// candidate without reaching a consistent boundary. The engine
	// refuses to open rather than guess at the file contents.
	ErrUnrecoverableStore = errors.New("rowlog: store is unrecoverable")

	ErrExceedMaxBatchNum = errors.New("rowlog: batch exceeds the max entry count")

	ErrEmptyKey    = errors.New("rowlog: the key is empty")
	ErrKeyNotFound = errors.New("rowlog: no row for key")
)
