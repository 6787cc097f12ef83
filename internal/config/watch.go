package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch re-reads the config whenever the file changes and delivers each
// successful read on configs. Read and watcher errors go to errs with a
// non-blocking send, and watching continues. Closing done stops the
// watcher and releases its resources.
//
// The parent directory is watched rather than the file itself: editors
// tend to replace the file on save, which would silently detach a watch
// on the old inode.
func Watch(path string, configs chan<- Config, errs chan<- error, done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					sendErr(errs, err)
					continue
				}
				select {
				case configs <- cfg:
				case <-done:
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				sendErr(errs, err)
			case <-done:
				return
			}
		}
	}()
	return nil
}

func sendErr(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
}
