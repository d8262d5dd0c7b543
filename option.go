package ridx

import (
	"ridx/internal/base"
)

// TreeOptions configures a BPlusTree at open time.
type TreeOptions struct {
	leafMaxSize     int32
	internalMaxSize int32
	comparator      base.Comparator
	logger          Logger
}

func defaultTreeOptions() TreeOptions {
	return TreeOptions{
		leafMaxSize:     base.LeafSlotCap,
		internalMaxSize: base.InternalSlotCap,
		comparator:      base.IntegerComparator,
		logger:          DiscardLogger{},
	}
}

// TreeOption configures tree behavior using the functional options pattern.
type TreeOption func(*TreeOptions)

// WithLeafMaxSize caps leaf occupancy; a leaf at max size splits on the
// next insert. Values above the physical slot capacity are clamped.
func WithLeafMaxSize(n int32) TreeOption {
	return func(opts *TreeOptions) {
		opts.leafMaxSize = n
	}
}

// WithInternalMaxSize caps internal-node occupancy in child pointers.
func WithInternalMaxSize(n int32) TreeOption {
	return func(opts *TreeOptions) {
		opts.internalMaxSize = n
	}
}

// WithComparator injects the key order. Defaults to the int64 encoding
// order of Key.SetFromInteger.
func WithComparator(cmp base.Comparator) TreeOption {
	return func(opts *TreeOptions) {
		if cmp != nil {
			opts.comparator = cmp
		}
	}
}

// WithLogger routes index diagnostics to log.
func WithLogger(log Logger) TreeOption {
	return func(opts *TreeOptions) {
		if log != nil {
			opts.logger = log
		}
	}
}
