package ingestion

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a department must be quiet before it is re-ingested.
const DefaultDebounce = 2 * time.Second

// WatchHandler receives the outcome of every re-ingestion triggered by Watch.
type WatchHandler func(report *DepartmentReport, err error)

// Watch re-ingests a department whenever markdown or CSV files in its
// folder change. Events are debounced per department. Department folders
// created while watching are picked up. Watch blocks until ctx is done.
func (p *Pipeline) Watch(ctx context.Context, root string, debounce time.Duration, handler WatchHandler) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		return err
	}
	departments, err := listDepartments(root)
	if err != nil {
		return err
	}
	for _, dept := range departments {
		if err := watcher.Add(filepath.Join(root, dept)); err != nil {
			return err
		}
	}
	p.logger.Info("watching for document changes", "root", root, "departments", len(departments))

	root = filepath.Clean(root)
	ready := make(chan string, 16)
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	schedule := func(dept string) {
		if t, ok := pending[dept]; ok {
			t.Reset(debounce)
			return
		}
		pending[dept] = time.AfterFunc(debounce, func() {
			select {
			case ready <- dept:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			dir := filepath.Dir(event.Name)
			if dir == root {
				// A new department folder.
				if event.Has(fsnotify.Create) {
					if err := watcher.Add(event.Name); err == nil {
						schedule(filepath.Base(event.Name))
					}
				}
				continue
			}
			if filepath.Dir(dir) != root {
				continue
			}
			if _, ok := TypeOf(event.Name); !ok {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				schedule(filepath.Base(dir))
			}

		case dept := <-ready:
			delete(pending, dept)
			p.logger.Info("re-ingesting department", "department", dept)
			report, err := p.IngestDepartment(ctx, dept, filepath.Join(root, dept), nil)
			if err != nil {
				p.logger.Error("re-ingestion failed", "department", dept, "err", err)
			}
			if handler != nil {
				handler(report, err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("file watcher error", "err", err)
		}
	}
}
