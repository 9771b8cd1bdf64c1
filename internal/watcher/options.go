package watcher

import (
	"fmt"

	"batchwatch/internal/logger"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"
)

// Options are the watch-source settings carried in the aggregator's
// pass-through option map.
type Options struct {
	// Ignored holds filepath.Match patterns tested against every path segment.
	Ignored []string `mapstructure:"ignored"`
	// Recursive watches subdirectories, including ones created later.
	Recursive bool `mapstructure:"recursive"`
	// BufferSize bounds the queue between fsnotify and the listeners.
	BufferSize int `mapstructure:"buffer_size"`
}

var Default = Options{
	Recursive:  true,
	BufferSize: 256,
}

func DecodeOptions(m map[string]any) (Options, error) {
	opts := Default
	opts.Ignored = append([]string(nil), Default.Ignored...)

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           &opts,
	})
	if err != nil {
		return opts, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := dec.Decode(m); err != nil {
		return opts, fmt.Errorf("failed to decode watch options: %w", err)
	}

	if len(md.Unused) > 0 {
		logger.Log.Debug("ignoring unknown watch options",
			zap.Strings("keys", md.Unused))
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = Default.BufferSize
	}

	return opts, nil
}
