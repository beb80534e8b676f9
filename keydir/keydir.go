package keydir

import "github.com/rowlog/rowlog/model"

// Keydir maps a logical key to the latest row id written for it. It is a
// caller-level view over the engine's row space; the engine itself never
// consults it. You can use some other data structure once you implement
// this interface.
type Keydir interface {
	Put(key []byte, row model.RowID) bool
	Get(key []byte) (model.RowID, bool)
	Delete(key []byte) bool
	Iterator() Iterator
}

type Iterator interface {
	Rewind()
	Next()
	Valid() bool
	Key() []byte
	Row() model.RowID
	Close()
}
