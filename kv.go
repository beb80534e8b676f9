package rowlog

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/rowlog/rowlog/keydir"
)

/*
kv payload framing, inside an opaque engine payload:
	flag(1) | keySize(uvarint) | key | value
	a tombstone has flag 1 and no value
*/
const (
	kvFlagSet       byte = 0
	kvFlagTombstone byte = 1
)

// KV is a key-value view over an Engine. It keeps the latest row id per
// key in an in-memory directory, rebuilt from the index on open. Old rows
// for a rewritten key stay in the log as dead weight.
type KV struct {
	mu     sync.Mutex
	engine *Engine
	dir    keydir.Keydir
}

// OpenKV opens the underlying engine and replays every committed row into
// the key directory.
func OpenKV(dirPath string, opts ...Option) (*KV, error) {
	engine, err := Open(dirPath, opts...)
	if err != nil {
		return nil, err
	}

	kv := &KV{engine: engine, dir: engine.options.keydir}
	if err = kv.rebuild(); err != nil {
		_ = engine.Close()
		return nil, err
	}
	return kv, nil
}

func (kv *KV) rebuild() error {
	count := kv.engine.Count()
	for row := RowID(0); row < RowID(count); row++ {
		payload, err := kv.engine.Get(row)
		if err != nil {
			return errors.Wrapf(err, "rebuild key directory at row %d", row)
		}
		key, _, tombstone, err := decodeKVPayload(payload)
		if err != nil {
			return errors.Wrapf(err, "rebuild key directory at row %d", row)
		}
		if tombstone {
			kv.dir.Delete(key)
		} else {
			kv.dir.Put(key, row)
		}
	}
	return nil
}

// Set writes a new row for key and returns its id.
func (kv *KV) Set(key, value []byte) (RowID, error) {
	if len(key) == 0 {
		return 0, ErrEmptyKey
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()

	row, err := kv.engine.Put(encodeKVPayload(key, value, false))
	if err != nil {
		return 0, err
	}
	kv.dir.Put(append([]byte(nil), key...), row)
	return row, nil
}

// Get returns the value most recently set for key.
func (kv *KV) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	row, ok := kv.dir.Get(key)
	if !ok {
		return nil, errors.Wrapf(ErrKeyNotFound, "key %q", key)
	}

	payload, err := kv.engine.Get(row)
	if err != nil {
		return nil, err
	}
	_, value, tombstone, err := decodeKVPayload(payload)
	if err != nil {
		return nil, err
	}
	if tombstone {
		return nil, errors.Wrapf(ErrKeyNotFound, "key %q", key)
	}
	return value, nil
}

// Delete writes a tombstone row for key. Deleting an absent key is a
// no-op.
func (kv *KV) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()

	if _, ok := kv.dir.Get(key); !ok {
		return nil
	}
	if _, err := kv.engine.Put(encodeKVPayload(key, nil, true)); err != nil {
		return err
	}
	kv.dir.Delete(key)
	return nil
}

// ListKeys returns every live key in ascending order.
func (kv *KV) ListKeys() [][]byte {
	it := kv.dir.Iterator()
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Key())
	}
	return keys
}

// Fold calls fn for every live key-value pair, stopping at the first
// error.
func (kv *KV) Fold(fn func(key, value []byte) error) error {
	it := kv.dir.Iterator()
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		payload, err := kv.engine.Get(it.Row())
		if err != nil {
			return err
		}
		_, value, _, err := decodeKVPayload(payload)
		if err != nil {
			return err
		}
		if err = fn(it.Key(), value); err != nil {
			return err
		}
	}
	return nil
}

// Engine exposes the underlying row engine.
func (kv *KV) Engine() *Engine {
	return kv.engine
}

func (kv *KV) Close() error {
	return kv.engine.Close()
}

func encodeKVPayload(key, value []byte, tombstone bool) []byte {
	buf := make([]byte, 1+binary.MaxVarintLen64+len(key)+len(value))
	if tombstone {
		buf[0] = kvFlagTombstone
	}
	idx := 1
	idx += binary.PutUvarint(buf[idx:], uint64(len(key)))
	idx += copy(buf[idx:], key)
	idx += copy(buf[idx:], value)
	return buf[:idx]
}

func decodeKVPayload(payload []byte) (key, value []byte, tombstone bool, err error) {
	if len(payload) < 2 {
		return nil, nil, false, errors.Wrap(ErrCorruptFraming, "short kv payload")
	}

	switch payload[0] {
	case kvFlagSet:
	case kvFlagTombstone:
		tombstone = true
	default:
		return nil, nil, false, errors.Wrapf(ErrCorruptFraming, "unknown kv flag %#x", payload[0])
	}

	keySize, n := binary.Uvarint(payload[1:])
	if n <= 0 || 1+n+int(keySize) > len(payload) {
		return nil, nil, false, errors.Wrap(ErrCorruptFraming, "bad kv key size")
	}

	key = payload[1+n : 1+n+int(keySize)]
	value = payload[1+n+int(keySize):]
	return key, value, tombstone, nil
}
