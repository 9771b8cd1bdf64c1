package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"batchwatch/internal/aggregator"
	"batchwatch/internal/logger"
	"batchwatch/internal/model"
	"batchwatch/internal/pipeline"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Source watches local paths and glob patterns with fsnotify.
type Source struct{}

func NewSource() *Source {
	return &Source{}
}

type root struct {
	path string
	dir  bool
}

// Handle is one running fsnotify watch.
type Handle struct {
	fw       *fsnotify.Watcher
	opts     Options
	roots    []root
	patterns []string

	mu       sync.Mutex
	ready    bool
	readyFns []func()
	eventFns []func(kind, path string)

	doneCh    chan struct{}
	closeOnce sync.Once
}

func (s *Source) Watch(targets []string, options map[string]any) (aggregator.Handle, error) {
	opts, err := DecodeOptions(options)
	if err != nil {
		return nil, err
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("no watch targets given")
	}

	fw, err := fsnotify.NewBufferedWatcher(uint(opts.BufferSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	h := &Handle{
		fw:     fw,
		opts:   opts,
		doneCh: make(chan struct{}),
	}

	for _, target := range targets {
		if err := h.addTarget(target); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}

	go h.run()

	return h, nil
}

func (h *Handle) addTarget(target string) error {
	abs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	if hasMeta(abs) {
		if _, err := filepath.Glob(abs); err != nil {
			return fmt.Errorf("invalid pattern %s: %w", target, err)
		}
		h.patterns = append(h.patterns, abs)
		return h.addRecursive(staticPrefix(abs))
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch target not found: %w", err)
	}

	if !info.IsDir() {
		h.roots = append(h.roots, root{path: abs})
		if err := h.fw.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", abs, err)
		}
		return nil
	}

	h.roots = append(h.roots, root{path: abs, dir: true})
	if !h.opts.Recursive {
		if err := h.fw.Add(abs); err != nil {
			return fmt.Errorf("failed to watch %s: %w", abs, err)
		}
		return nil
	}

	return h.addRecursive(abs)
}

func (h *Handle) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if rel, _ := filepath.Rel(dir, path); path != dir && pipeline.ShouldIgnore(rel, h.opts.Ignored) {
			return filepath.SkipDir
		}

		if err := h.fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		logger.Log.Debug("watching directory",
			zap.String("path", path))

		return nil
	})
}

func (h *Handle) run() {
	h.markReady()

	for {
		select {
		case <-h.doneCh:
			logger.Log.Debug("watcher stopping")
			return

		case fsEvent, ok := <-h.fw.Events:
			if !ok {
				return
			}
			h.handle(fsEvent)

		case err, ok := <-h.fw.Errors:
			if !ok {
				return
			}

			logger.Log.Error("watcher error",
				zap.Error(err))
		}
	}
}

func (h *Handle) handle(fsEvent fsnotify.Event) {
	kind := toEventKind(fsEvent.Op)
	if kind == "" {
		return
	}

	if fsEvent.Op.Has(fsnotify.Create) && h.opts.Recursive && !h.ignored(fsEvent.Name) {
		if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
			if err := h.addRecursive(fsEvent.Name); err != nil {
				logger.Log.Warn("failed to watch new directory",
					zap.String("path", fsEvent.Name),
					zap.Error(err))
			} else {
				logger.Log.Debug("added new directory to watch",
					zap.String("path", fsEvent.Name))
			}
		}
	}

	if !h.accept(fsEvent.Name) {
		return
	}

	h.mu.Lock()
	fns := append([]func(string, string){}, h.eventFns...)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(string(kind), fsEvent.Name)
	}
}

// accept reports whether path belongs to one of the watch targets. Ignore
// patterns only apply below the target, never to the directories holding it.
func (h *Handle) accept(path string) bool {
	for _, r := range h.roots {
		if path == r.path {
			return true
		}
		if !r.dir {
			continue
		}
		rel, ok := below(r.path, path)
		if !ok {
			continue
		}
		if pipeline.ShouldIgnore(rel, h.opts.Ignored) {
			return false
		}
		if h.opts.Recursive || !strings.ContainsRune(rel, filepath.Separator) {
			return true
		}
	}

	for _, pattern := range h.patterns {
		if matched, err := filepath.Match(pattern, path); err == nil && matched {
			rel, _ := below(staticPrefix(pattern), path)
			return !pipeline.ShouldIgnore(rel, h.opts.Ignored)
		}
	}

	return false
}

// ignored matches path against the ignore list relative to the first watched
// directory that contains it.
func (h *Handle) ignored(path string) bool {
	for _, r := range h.roots {
		if rel, ok := below(r.path, path); ok && r.dir {
			return pipeline.ShouldIgnore(rel, h.opts.Ignored)
		}
	}
	for _, pattern := range h.patterns {
		if rel, ok := below(staticPrefix(pattern), path); ok {
			return pipeline.ShouldIgnore(rel, h.opts.Ignored)
		}
	}
	return pipeline.ShouldIgnore(path, h.opts.Ignored)
}

// below returns path relative to dir when path lies strictly inside dir.
func below(dir, path string) (string, bool) {
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	return path[len(prefix):], true
}

func (h *Handle) markReady() {
	h.mu.Lock()
	h.ready = true
	fns := h.readyFns
	h.readyFns = nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// OnReady registers fn to run once the initial scan is complete. If the
// handle is already ready fn runs immediately.
func (h *Handle) OnReady(fn func()) {
	h.mu.Lock()
	if !h.ready {
		h.readyFns = append(h.readyFns, fn)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	fn()
}

func (h *Handle) OnEvent(fn func(kind, path string)) {
	h.mu.Lock()
	h.eventFns = append(h.eventFns, fn)
	h.mu.Unlock()
}

func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.doneCh)
		err = h.fw.Close()
	})
	return err
}

func toEventKind(op fsnotify.Op) model.EventKind {
	switch {
	case op.Has(fsnotify.Create):
		return model.EventCreate
	case op.Has(fsnotify.Write):
		return model.EventChange
	case op.Has(fsnotify.Remove):
		return model.EventDelete
	case op.Has(fsnotify.Rename):
		return model.EventRename
	default:
		return ""
	}
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, `*?[`)
}

// staticPrefix returns the longest leading directory of pattern that holds
// no glob metacharacters.
func staticPrefix(pattern string) string {
	dir := filepath.Dir(pattern)
	for hasMeta(dir) {
		dir = filepath.Dir(dir)
	}
	return dir
}
