package pipeline

import (
	"io"
	"os"
	"sync"

	"batchwatch/internal/logger"
	"batchwatch/internal/model"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// ChecksumFilter drops create/change events whose file content is identical
// to what it saw the last time the path passed through.
type ChecksumFilter struct {
	mu    sync.Mutex
	cache map[string]uint64
}

func NewChecksumFilter() *ChecksumFilter {
	return &ChecksumFilter{
		cache: make(map[string]uint64),
	}
}

func (cf *ChecksumFilter) Apply(events []model.ChangeEvent) []model.ChangeEvent {
	out := make([]model.ChangeEvent, 0, len(events))

	for _, event := range events {
		if event.Kind == model.EventDelete || event.Kind == model.EventRename {
			cf.forget(event.Path)
			out = append(out, event)
			continue
		}

		sum, err := checksum(event.Path)
		if err != nil {
			// directories and vanished files carry no content to compare
			logger.Log.Debug("checksum failed, passing through",
				zap.String("path", event.Path),
				zap.Error(err))
			out = append(out, event)
			continue
		}

		if cf.changed(event.Path, sum) {
			out = append(out, event)
		} else {
			logger.Log.Debug("checksum unchanged, skipping",
				zap.String("path", event.Path))
		}
	}

	return out
}

func (cf *ChecksumFilter) changed(path string, sum uint64) bool {
	cf.mu.Lock()
	defer cf.mu.Unlock()

	prev, exists := cf.cache[path]
	if exists && prev == sum {
		return false
	}

	cf.cache[path] = sum
	return true
}

func (cf *ChecksumFilter) forget(path string) {
	cf.mu.Lock()
	delete(cf.cache, path)
	cf.mu.Unlock()
}

func checksum(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, &os.PathError{Op: "checksum", Path: path, Err: os.ErrInvalid}
	}

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}

	return h.Sum64(), nil
}
