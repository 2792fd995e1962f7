package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Root        string // watched recursively
	Exts        []string
	GroupByDir  bool
	InitialScan bool          // emit files already present
	Debounce    time.Duration // pages arriving within this window form one batch
}

// Watch emits documents as page files appear under cfg.Root. Paths written
// within one debounce window are grouped together, so a front and back
// dropped at once become a single document. Both channels close when ctx ends.
func Watch(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan Document, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Root == "" {
		return nil, nil, errors.New("watch root is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	exts := extSet(cfg.Exts)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watch.create_failed", "error", err)
		return nil, nil, err
	}

	var (
		mu      sync.Mutex
		pending = map[string]struct{}{}
	)
	add := func(p string) {
		mu.Lock()
		pending[p] = struct{}{}
		mu.Unlock()
	}

	err = filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && allowed(path, exts) {
			add(path)
		}
		return nil
	})
	if err != nil {
		logger.Error("ingest.watch.add_failed", "root", cfg.Root, "error", err)
		_ = w.Close()
		return nil, nil, err
	}

	docCh := make(chan Document, 64)
	errCh := make(chan error, 1)

	flush := func() {
		mu.Lock()
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		clear(pending)
		mu.Unlock()

		for _, d := range Group(cfg.Root, paths, cfg.GroupByDir) {
			select {
			case docCh <- d:
			case <-ctx.Done():
				return
			}
		}
	}

	go func() {
		defer close(docCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watch.close_failed", "error", err)
			}
		}()

		timer := time.NewTimer(cfg.Debounce)
		if !cfg.InitialScan {
			timer.Stop()
		}
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				flush()
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("ingest.watch.add_failed", "path", e.Name, "error", err)
						}
					}
				}
				if allowed(e.Name, exts) && (e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename)) {
					add(e.Name)
					timer.Reset(cfg.Debounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return docCh, errCh, nil
}
