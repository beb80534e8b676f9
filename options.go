package rowlog

import (
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rowlog/rowlog/codec"
	"github.com/rowlog/rowlog/fio"
	"github.com/rowlog/rowlog/keydir"
)

const defaultMaxBatchNum = 10000

type options struct {
	codec            codec.Codec
	ioManagerCreator func(path string) (fio.IOManager, error)
	keydir           keydir.Keydir

	// syncWrites forces both files durable inside every commit. Turning
	// it off trades the crash guarantee for throughput.
	syncWrites  bool
	maxBatchNum int

	logger     log.Logger
	registerer prometheus.Registerer
}

func defaultOptions() options {
	return options{
		codec:            codec.NewImpl(),
		ioManagerCreator: defaultIOManagerCreator,
		keydir:           keydir.NewBTree(0),
		syncWrites:       true,
		maxBatchNum:      defaultMaxBatchNum,
		logger:           log.NewNopLogger(),
		registerer:       prometheus.NewRegistry(),
	}
}

var defaultIOManagerCreator = func(path string) (fio.IOManager, error) {
	return fio.NewFileIO(path)
}

type Option func(*options)

func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

func WithIOManagerCreator(fn func(path string) (fio.IOManager, error)) Option {
	return func(o *options) {
		o.ioManagerCreator = fn
	}
}

func WithKeydir(kd keydir.Keydir) Option {
	return func(o *options) {
		o.keydir = kd
	}
}

// WithNoSync skips the fsync after log and index appends.
func WithNoSync() Option {
	return func(o *options) {
		o.syncWrites = false
	}
}

func WithMaxBatchNum(n int) Option {
	return func(o *options) {
		o.maxBatchNum = n
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = registerer
	}
}
