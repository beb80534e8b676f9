package codec

import (
	"github.com/rowlog/rowlog/model"
)

// ErrCorruptFraming reports entry bytes that fail to decode. Aliased from
// model so file-level readers can return the same value.
var ErrCorruptFraming = model.ErrCorruptFraming

// Codec turns entries into self-framed byte sequences and back. A reader
// positioned at the start of a frame can determine its total length and
// kind without any external metadata.
type Codec interface {
	// EncodeEntry returns the framed bytes and their total size.
	EncodeEntry(*model.Entry) ([]byte, int64, error)

	// DecodeHeader parses the framing at the start of buf into header and
	// returns the header size. buf may be shorter than a full header as
	// long as it covers the encoded fields.
	DecodeHeader(buf []byte, header *model.EntryHeader) (int64, error)

	// DecodeEntry parses one complete frame at the start of buf, verifies
	// its checksum, and returns the bytes consumed.
	DecodeEntry(buf []byte, entry *model.Entry) (int64, error)
}
