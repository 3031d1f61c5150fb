package runner

import (
	"context"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"hermannm.dev/wrap"

	"observatory/internal/config"
)

const defaultDebounce = 500 * time.Millisecond

// Watch runs the selected datasets once, then re-runs a dataset whenever its
// source file changes, until ctx is done. Changes arriving within the
// debounce window are batched into one run. Remote and sql sources are run
// once and not watched.
//
// Errors:
//   - The configuration fault of the first run.
//   - A watcher setup error. Dataset failures are only logged.
func (r *Runner) Watch(ctx context.Context, p config.Pipeline, only ...string) error {
	if _, err := r.Run(ctx, p, only...); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	selected, _ := selectDatasets(p.Datasets, only)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return wrap.Error(err, "create file watcher")
	}
	defer watcher.Close()

	byPath := watchedPaths(selected)
	log := r.logger()
	if len(byPath) == 0 {
		log.Printf("level=warn stage=watch no local file sources to watch")
	}

	dirs := make(map[string]bool)
	for path := range byPath {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		// Watching the directory catches editors that replace files by rename.
		if err := watcher.Add(dir); err != nil {
			return wrap.Errorf(err, "watch %s", dir)
		}
		dirs[dir] = true
		log.Printf("stage=watch dir=%s", dir)
	}

	debounce := defaultDebounce
	if p.Runtime.WatchDebounceMillis > 0 {
		debounce = time.Duration(p.Runtime.WatchDebounceMillis) * time.Millisecond
	}

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			names := byPath[filepath.Clean(ev.Name)]
			if len(names) == 0 {
				continue
			}
			for _, n := range names {
				pending[n] = true
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("level=error stage=watch %v", err)

		case <-timer.C:
			names := make([]string, 0, len(pending))
			for _, ds := range selected {
				if pending[ds.Name] {
					names = append(names, ds.Name)
				}
			}
			clear(pending)
			log.Printf("stage=watch changed datasets=%v", names)

			report, err := r.Run(ctx, p, names...)
			if err != nil && ctx.Err() != nil {
				return nil
			}
			if r.onWatchRun != nil {
				r.onWatchRun(report)
			}
		}
	}
}

// watchedPaths maps each local source file to the datasets reading it.
func watchedPaths(datasets []config.Dataset) map[string][]string {
	out := make(map[string][]string)
	for _, ds := range datasets {
		s := ds.Source
		if s.Path == "" || s.Kind == "sql" || config.IsRemote(s.Path) {
			continue
		}
		abs, err := filepath.Abs(s.Path)
		if err != nil {
			continue
		}
		abs = filepath.Clean(abs)
		if !slices.Contains(out[abs], ds.Name) {
			out[abs] = append(out[abs], ds.Name)
		}
	}
	return out
}
