package monitor

import (
	"fmt"
	"sync"
	"time"

	"mcp-tool-server/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// FileEvent describes a filesystem change delivered to callbacks
type FileEvent struct {
	Type string // "create", "modify" or "delete"
	Path string
}

// InvalidationMonitor watches directories for changes and notifies
// registered callbacks, debouncing rapid event bursts per path.
type InvalidationMonitor struct {
	watcher       *fsnotify.Watcher
	debounceDelay time.Duration
	callbacks     []func(FileEvent)
	timers        map[string]*time.Timer
	mutex         sync.Mutex
	started       bool
	logger        *logging.StructuredLogger
}

// NewInvalidationMonitor creates a filesystem monitor
func NewInvalidationMonitor(logger *logging.StructuredLogger) (*InvalidationMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = logging.NewLoggingManager().GetLogger("monitor")
	}

	return &InvalidationMonitor{
		watcher:       watcher,
		debounceDelay: 500 * time.Millisecond,
		timers:        make(map[string]*time.Timer),
		logger:        logger,
	}, nil
}

// OnChange registers a callback invoked for every debounced file event
func (im *InvalidationMonitor) OnChange(callback func(FileEvent)) {
	im.mutex.Lock()
	defer im.mutex.Unlock()

	im.callbacks = append(im.callbacks, callback)
}

// Watch starts watching a directory for changes. The event loop is
// started on the first call.
func (im *InvalidationMonitor) Watch(path string) error {
	if err := im.watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", path, err)
	}

	im.mutex.Lock()
	if !im.started {
		im.started = true
		go im.monitorEvents()
	}
	im.mutex.Unlock()

	im.logger.WithContext("path", path).Info("Started monitoring directory")
	return nil
}

// Close stops the filesystem monitoring
func (im *InvalidationMonitor) Close() error {
	if im.watcher != nil {
		return im.watcher.Close()
	}
	return nil
}

// monitorEvents processes filesystem events with per-path debouncing
func (im *InvalidationMonitor) monitorEvents() {
	for {
		select {
		case event, ok := <-im.watcher.Events:
			if !ok {
				return
			}
			im.debounce(event)

		case err, ok := <-im.watcher.Errors:
			if !ok {
				return
			}
			im.logger.WithError(err).Warn("File watcher error")
		}
	}
}

// debounce coalesces rapid events for the same path
func (im *InvalidationMonitor) debounce(event fsnotify.Event) {
	im.mutex.Lock()
	defer im.mutex.Unlock()

	if timer, exists := im.timers[event.Name]; exists {
		timer.Stop()
	}

	im.timers[event.Name] = time.AfterFunc(im.debounceDelay, func() {
		im.mutex.Lock()
		delete(im.timers, event.Name)
		im.mutex.Unlock()

		im.processEvent(event)
	})
}

// processEvent maps fsnotify operations to FileEvent types and fans
// the event out to callbacks
func (im *InvalidationMonitor) processEvent(event fsnotify.Event) {
	var eventType string
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = "create"
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = "modify"
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = "delete"
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = "delete"
	default:
		return
	}

	fileEvent := FileEvent{Type: eventType, Path: event.Name}

	im.mutex.Lock()
	callbacks := make([]func(FileEvent), len(im.callbacks))
	copy(callbacks, im.callbacks)
	im.mutex.Unlock()

	for _, callback := range callbacks {
		callback(fileEvent)
	}

	im.logger.WithContext("event_type", eventType).
		WithContext("path", event.Name).
		Debug("File system event")
}
