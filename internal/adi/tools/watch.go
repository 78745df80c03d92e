package tools

import (
	"github.com/fsnotify/fsnotify"

	"github.com/adi-family/cocoon/internal/adi"
)

// pathWatcher owns one fsnotify.Watcher and the goroutine relaying its
// events into the service's fs.changed subscribers.
type pathWatcher struct {
	w    *fsnotify.Watcher
	done chan struct{}
}

func (p *pathWatcher) stop() {
	close(p.done)
	p.w.Close()
}

// handleWatchPath starts watching path for filesystem changes, emitting
// fs.changed events to subscribers. Watching the same path twice is a
// no-op; the first call wins.
func (s *Service) handleWatchPath(params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	path, ok := params["path"].(string)
	if !ok || path == "" {
		return adi.HandleResult{}, adi.InvalidParams("path is required")
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if _, exists := s.watchers[path]; exists {
		return adi.Success(map[string]any{"path": path, "watching": true}), nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return adi.HandleResult{}, adi.Internal(err.Error())
	}

	pw := &pathWatcher{w: w, done: make(chan struct{})}
	s.watchers[path] = pw
	go s.relayWatchEvents(path, pw)

	return adi.Success(map[string]any{"path": path, "watching": true}), nil
}

func (s *Service) handleUnwatchPath(params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	path, ok := params["path"].(string)
	if !ok || path == "" {
		return adi.HandleResult{}, adi.InvalidParams("path is required")
	}

	s.watchMu.Lock()
	pw, exists := s.watchers[path]
	if exists {
		delete(s.watchers, path)
	}
	s.watchMu.Unlock()

	if exists {
		pw.stop()
	}
	return adi.Success(map[string]any{"path": path, "watching": false}), nil
}

func (s *Service) relayWatchEvents(path string, pw *pathWatcher) {
	for {
		select {
		case <-pw.done:
			return
		case ev, ok := <-pw.w.Events:
			if !ok {
				return
			}
			s.emit("fs.changed", map[string]any{
				"path": ev.Name, "watched_path": path, "op": ev.Op.String(),
			})
		case _, ok := <-pw.w.Errors:
			if !ok {
				return
			}
		}
	}
}
