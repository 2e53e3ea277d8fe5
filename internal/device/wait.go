package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WaitForPort blocks until the device node at path exists or ctx is done.
// It watches the parent directory so a board plugged in after the command
// starts is picked up as soon as the kernel creates its node.
func WaitForPort(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// The node may have appeared between the first stat and Add.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	want := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if filepath.Clean(event.Name) == want && event.Has(fsnotify.Create) {
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			// Watcher errors are non-fatal; keep waiting.
			slog.Debug("port watcher error", "path", path, "error", err)
		}
	}
}
