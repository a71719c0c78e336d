// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"go.uber.org/zap"
)

const (
	// DefaultInputSegmentSize is the chunk size used when pushing deferred
	// parameter data.
	DefaultInputSegmentSize = 100000
	// DefaultOutputSegmentSize is the chunk size used when fetching long
	// column values.
	DefaultOutputSegmentSize = 1000000
	// MaxDescriptors is the largest descriptor array the CLI can address.
	MaxDescriptors = 32767
)

type config struct {
	logger         *zap.Logger
	prepared       bool
	inputSegment   int
	outputSegment  int
	maxDescriptors int
}

func defaultConfig() config {
	return config{
		logger:         zap.NewNop(),
		inputSegment:   DefaultInputSegmentSize,
		outputSegment:  DefaultOutputSegmentSize,
		maxDescriptors: MaxDescriptors,
	}
}

// Option configures a Statement or a Connector.
type Option func(*config)

// WithLogger sets the logger used for execution and transfer events. The
// default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPrepared makes statements prepare their query text once and reuse
// the prepared plan while the text stays the same.
func WithPrepared(enabled bool) Option {
	return func(c *config) {
		c.prepared = enabled
	}
}

// WithInputSegmentSize sets the default chunk size for deferred parameters.
func WithInputSegmentSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.inputSegment = n
		}
	}
}

// WithOutputSegmentSize sets the default chunk size for long column values.
func WithOutputSegmentSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.outputSegment = n
		}
	}
}

// WithMaxDescriptors lowers the largest accepted parameter or column count.
func WithMaxDescriptors(n int) Option {
	return func(c *config) {
		if n > 0 && n <= MaxDescriptors {
			c.maxDescriptors = n
		}
	}
}
