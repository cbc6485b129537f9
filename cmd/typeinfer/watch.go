package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay collapses the bursts of events editors produce on save.
const settleDelay = 100 * time.Millisecond

// watch runs every file once, then re-runs a file each time it changes,
// until ctx is done. Directories are watched rather than the files so that
// saves which replace the file are still seen.
func (r *runner) watch(ctx context.Context, files []string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := make(map[string]string, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = f
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	r.runAll(ctx, files)

	pending := make(map[string]bool)
	timer := time.NewTimer(settleDelay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			name, ok := watched[filepath.Clean(ev.Name)]
			if !ok {
				continue
			}
			pending[name] = true
			timer.Reset(settleDelay)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Printf("watch: %v", err)

		case <-timer.C:
			for _, f := range files {
				if !pending[f] {
					continue
				}
				delete(pending, f)
				fmt.Fprintf(r.out, "--- %s\n", f)
				r.run(ctx, f)
			}
		}
	}
}
