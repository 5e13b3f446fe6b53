// Package watch provides recursive file system watching for the sync daemon.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Op represents the type of file system operation.
type Op int

const (
	// Created indicates a new file or directory appeared.
	Created Op = iota
	// Modified indicates an existing file was written.
	Modified
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case Created:
		return "created"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Event is one change under the watched root.
type Event struct {
	// Path is the path of the file or directory that changed.
	Path string
	// Op is the operation that occurred.
	Op Op
	// IsDir is true when the path was a directory at delivery time.
	IsDir bool
}

// FileWatcher watches a directory tree for changes.
// Directories created after Start are added to the watch as they appear.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	closed  bool
	root    string
}

// NewFileWatcher creates a new FileWatcher instance.
// The watcher must be started with Start() before it will emit events.
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching root and every directory below it.
func (fw *FileWatcher) Start(root string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher already running")
	}
	if fw.closed {
		return fmt.Errorf("watcher already stopped")
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat watch root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", root)
	}

	fw.root = root
	if _, err := fw.addTree(root); err != nil {
		return err
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	return nil
}

// addTree adds dir and all directories below it to the watch. It returns the
// regular files found along the way.
func (fw *FileWatcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The tree can change while it is walked.
			if os.IsNotExist(err) && path != dir {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
			return nil
		}
		if err := fw.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
		return nil
	})
	return files, err
}

// Stop stops watching for file system events and cleans up resources.
// It blocks until the event processing goroutine has exited.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return nil
	}
	fw.running = false
	fw.closed = true
	fw.mu.Unlock()

	close(fw.done)

	// Closing the underlying watcher unblocks the event loop.
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	fw.wg.Wait()

	close(fw.events)
	close(fw.errors)

	return nil
}

// Events returns the channel that emits change notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Events() <-chan Event {
	return fw.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// Root returns the directory passed to Start.
func (fw *FileWatcher) Root() string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.root
}

// processEvents is the main event loop that converts fsnotify events to
// Event notifications.
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			ev, ok := convertEvent(event)
			if !ok {
				continue
			}
			if !fw.emit(ev) {
				return
			}
			if ev.IsDir && ev.Op == Created {
				if !fw.watchNewDir(ev.Path) {
					return
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			if !fw.emitErr(err) {
				return
			}
		}
	}
}

// watchNewDir adds a freshly created directory. Files written into it before
// the watch was in place are reported as created.
func (fw *FileWatcher) watchNewDir(dir string) bool {
	files, err := fw.addTree(dir)
	if err != nil {
		return fw.emitErr(err)
	}
	for _, path := range files {
		if !fw.emit(Event{Path: path, Op: Created}) {
			return false
		}
	}
	return true
}

func (fw *FileWatcher) emit(ev Event) bool {
	select {
	case fw.events <- ev:
		return true
	case <-fw.done:
		return false
	}
}

func (fw *FileWatcher) emitErr(err error) bool {
	select {
	case fw.errors <- err:
		return true
	case <-fw.done:
		return false
	}
}

// convertEvent converts an fsnotify event. Only creations and writes are
// reported; removals, renames and permission changes are dropped.
func convertEvent(event fsnotify.Event) (Event, bool) {
	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = Created
	case event.Has(fsnotify.Write):
		op = Modified
	default:
		return Event{}, false
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	return Event{
		Path:  event.Name,
		Op:    op,
		IsDir: isDir,
	}, true
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}
