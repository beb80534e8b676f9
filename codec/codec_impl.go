package codec

import (
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/pkg/errors"

	"github.com/rowlog/rowlog/model"
)

// MaxHeaderSize bounds speculative header reads.
const MaxHeaderSize = 4 + 1 + binary.MaxVarintLen64

var _ Codec = (*Impl)(nil)

type Impl struct{}

func NewImpl() *Impl {
	return &Impl{}
}

/*
default frame:
	crc(4, big endian) | kind(1) | payloadSize(uvarint) | payload
	the crc covers everything after itself
*/

func (cl *Impl) EncodeEntry(entry *model.Entry) ([]byte, int64, error) {
	if !entry.Kind.Valid() {
		return nil, 0, errors.Wrapf(ErrCorruptFraming, "unknown entry kind %#x", byte(entry.Kind))
	}

	header := make([]byte, MaxHeaderSize)
	header[4] = byte(entry.Kind)
	idx := 5
	idx += binary.PutUvarint(header[idx:], uint64(len(entry.Payload)))

	data := make([]byte, 0, idx+len(entry.Payload))
	data = append(data, header[:idx]...)
	data = append(data, entry.Payload...)

	binary.BigEndian.PutUint32(data[:4], crc32.ChecksumIEEE(data[4:]))

	return data, int64(len(data)), nil
}

func (cl *Impl) DecodeHeader(buf []byte, header *model.EntryHeader) (int64, error) {
	if len(buf) < 6 {
		return 0, errors.Wrap(ErrCorruptFraming, "short header")
	}

	crc := binary.BigEndian.Uint32(buf[:4])

	kind := model.EntryKind(buf[4])
	if !kind.Valid() {
		return 0, errors.Wrapf(ErrCorruptFraming, "unknown entry kind %#x", buf[4])
	}

	payloadSize, n := binary.Uvarint(buf[5:])
	if n <= 0 {
		return 0, errors.Wrap(ErrCorruptFraming, "bad payload size")
	}
	if payloadSize > math.MaxInt64 {
		return 0, errors.Wrapf(ErrCorruptFraming, "payload size %d overflows", payloadSize)
	}

	header.Crc = crc
	header.Kind = kind
	header.PayloadSize = int64(payloadSize)
	header.Size = int64(5 + n)

	return header.Size, nil
}

func (cl *Impl) DecodeEntry(buf []byte, entry *model.Entry) (int64, error) {
	var header model.EntryHeader
	if _, err := cl.DecodeHeader(buf, &header); err != nil {
		return 0, err
	}

	if header.PayloadSize < 0 || header.PayloadSize > int64(len(buf))-header.Size {
		return 0, errors.Wrapf(ErrCorruptFraming, "declared payload size %d exceeds buffer %d", header.PayloadSize, len(buf))
	}
	total := header.Size + header.PayloadSize

	if crc32.ChecksumIEEE(buf[4:total]) != header.Crc {
		return 0, errors.Wrap(ErrCorruptFraming, "checksum mismatch")
	}

	entry.Kind = header.Kind
	entry.Payload = append([]byte(nil), buf[header.Size:total]...)

	return total, nil
}
