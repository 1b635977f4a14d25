package gwshare

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchDebugFlagFile turns DEBUG output on while the file at path exists and off
// while it does not. The containing directory is watched, so the file may be
// created and removed any number of times. The watch is established before
// WatchDebugFlagFile returns and stops when ctx is done.
func WatchDebugFlagFile(ctx context.Context, logger Logger, path string) error {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%s: Unable to create file watcher: %s", logger.Prefix(), err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("%s: Unable to watch \"%s\": %s", logger.Prefix(), filepath.Dir(path), err)
	}

	apply := func() {
		_, err := os.Stat(path)
		on := err == nil
		if on != logger.IsDebug() {
			logger.SetDebug(on)
			logger.ILogf("Debug output %s (flag file \"%s\")", onOff(on), path)
		}
	}
	apply()

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) == path {
					apply()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WLogf("Debug flag file watcher: %s", err)
			}
		}
	}()
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
