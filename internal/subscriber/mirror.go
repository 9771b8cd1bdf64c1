package subscriber

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"batchwatch/internal/aggregator"
	"batchwatch/internal/logger"
	"batchwatch/internal/model"
	"batchwatch/internal/pipeline"
	"batchwatch/internal/util"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Mirror replicates the final state of every changed path under src into dst.
type Mirror struct {
	src      string
	dst      string
	checksum *pipeline.ChecksumFilter
}

func NewMirror(src, dst string, checksum bool) (*Mirror, error) {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return nil, fmt.Errorf("invalid src path: %w", err)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return nil, fmt.Errorf("invalid dst path: %w", err)
	}

	if err := os.MkdirAll(absDst, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dst dir: %w", err)
	}

	m := &Mirror{
		src: absSrc,
		dst: absDst,
	}
	if checksum {
		m.checksum = pipeline.NewChecksumFilter()
	}

	return m, nil
}

// Callback applies a batch. A string "dst" param overrides the destination.
func (m *Mirror) Callback(ctx context.Context, events []model.ChangeEvent, params aggregator.Params) error {
	dst := m.dst
	if v, ok := params["dst"].(string); ok && v != "" {
		dst = v
	}

	batch := pipeline.LatestFilesEvents(events)
	if m.checksum != nil {
		batch = m.checksum.Apply(batch)
	}

	var errs error
	for _, ev := range batch {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, m.apply(ev, dst))
	}

	return errs
}

func (m *Mirror) apply(ev model.ChangeEvent, dstRoot string) error {
	dstPath := m.toDst(ev.Path, dstRoot)

	var err error
	switch ev.Kind {
	case model.EventCreate, model.EventChange:
		err = m.copy(ev.Path, dstPath)

	case model.EventDelete, model.EventRename:
		// a rename only reports the old name; the new one arrives as a create
		err = util.RemoveIfExists(dstPath)

	default:
		return nil
	}

	if err != nil {
		logger.Log.Error("mirror failed",
			zap.String("kind", string(ev.Kind)),
			zap.String("path", ev.Path),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", ev.Kind, ev.Path, err)
	}

	logger.Log.Debug("mirrored",
		zap.String("kind", string(ev.Kind)),
		zap.String("src", ev.Path),
		zap.String("dst", dstPath))

	return nil
}

func (m *Mirror) copy(src, dst string) error {
	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		// removed again before the batch was flushed
		return util.RemoveIfExists(dst)
	}
	if err != nil {
		return err
	}

	if info.IsDir() {
		return os.MkdirAll(dst, 0755)
	}

	return util.CopyFile(src, dst)
}

func (m *Mirror) toDst(srcPath, dstRoot string) string {
	rel, err := filepath.Rel(m.src, srcPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Join(dstRoot, filepath.Base(srcPath))
	}

	return filepath.Join(dstRoot, rel)
}
