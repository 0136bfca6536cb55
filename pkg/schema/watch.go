package schema

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadOnChange watches the store's directory for schema file writes and
// invalidates the corresponding cache entries, signalling on the returned
// channel once per change batch. The watcher runs until the returned stop
// function is called; callers that don't need to stop early may discard it.
func (s *FileStore) ReloadOnChange(logger *zap.Logger) (<-chan struct{}, func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, nil, err
	}

	changed := make(chan struct{}, 1)
	log := logger.Named("schema.watch")

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, schemaFileSuffix) {
					continue
				}
				if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
					continue
				}

				name := schemaNameFromPath(event.Name)
				s.invalidate(name)
				log.Info("schema file changed, cache invalidated", zap.String("schema", name), zap.String("op", event.Op.String()))

				select {
				case changed <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("schema watcher error", zap.Error(err))
			}
		}
	}()

	return changed, watcher.Close, nil
}

func schemaNameFromPath(path string) string {
	base := path
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		base = path[idx+1:]
	}
	return strings.TrimSuffix(base, schemaFileSuffix)
}
