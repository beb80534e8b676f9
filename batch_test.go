package rowlog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowlog/rowlog/model"
)

func TestBatch_Commit(t *testing.T) {
	e, err := Open(t.TempDir())
	require.NoError(t, err)
	defer e.Close()

	batch := e.NewBatch()
	for i := 0; i < 5; i++ {
		require.NoError(t, batch.Append([]byte(fmt.Sprintf("batched-%d", i))))
	}
	assert.Equal(t, 5, batch.Len())

	rows, err := batch.Commit()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i, row := range rows {
		assert.Equal(t, RowID(i), row)
	}
	assert.Equal(t, 0, batch.Len())

	for i, row := range rows {
		value, err := e.Get(row)
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprintf("batched-%d", i)), value)
	}
}

func TestBatch_CommitEmpty(t *testing.T) {
	e, err := Open(t.TempDir())
	require.NoError(t, err)
	defer e.Close()

	rows, err := e.NewBatch().Commit()
	require.NoError(t, err)
	assert.Nil(t, rows)
	assert.Equal(t, uint64(0), e.Count())
}

func TestBatch_Reuse(t *testing.T) {
	e, err := Open(t.TempDir())
	require.NoError(t, err)
	defer e.Close()

	batch := e.NewBatch()
	require.NoError(t, batch.Append([]byte("first")))
	_, err = batch.Commit()
	require.NoError(t, err)

	require.NoError(t, batch.Append([]byte("second")))
	rows, err := batch.Commit()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, RowID(1), rows[0])
}

func TestBatch_ExceedMaxBatchNum(t *testing.T) {
	e, err := Open(t.TempDir(), WithMaxBatchNum(2))
	require.NoError(t, err)
	defer e.Close()

	batch := e.NewBatch()
	require.NoError(t, batch.Append([]byte("one")))
	require.NoError(t, batch.Append([]byte("two")))
	assert.True(t, errors.Is(batch.Append([]byte("three")), ErrExceedMaxBatchNum))
}

func TestBatch_InterleavedWithPut(t *testing.T) {
	e, err := Open(t.TempDir())
	require.NoError(t, err)
	defer e.Close()

	batch := e.NewBatch()
	require.NoError(t, batch.Append([]byte("in-batch")))

	row, err := e.Put([]byte("direct"))
	require.NoError(t, err)
	assert.Equal(t, RowID(0), row)

	rows, err := batch.Commit()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, RowID(1), rows[0])
}

// A batch torn before its sentinel must vanish entirely on recovery.
func TestBatch_CrashMidCommitIsAtomic(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, model.LogFileName)
	idxPath := filepath.Join(dir, model.IndexFileName)

	e, err := Open(dir)
	require.NoError(t, err)
	_, err = e.Put([]byte("before"))
	require.NoError(t, err)
	cleanLogSize := fileSize(t, logPath)
	cleanIdxSize := fileSize(t, idxPath)

	batch := e.NewBatch()
	require.NoError(t, batch.Append([]byte("batch-a")))
	require.NoError(t, batch.Append([]byte("batch-b")))
	_, err = batch.Commit()
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// crash simulation: both batch entries hit the log but the sentinel
	// write was cut short, and no index record made it out
	stat, err := os.Stat(logPath)
	require.NoError(t, err)
	truncateFile(t, logPath, stat.Size()-2)
	truncateFile(t, idxPath, cleanIdxSize)

	e, err = Open(dir)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, uint64(1), e.Count())
	assert.Equal(t, cleanLogSize, fileSize(t, logPath))

	value, err := e.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("before"), value)

	_, err = e.Get(1)
	assert.True(t, errors.Is(err, ErrRowNotFound))
}
