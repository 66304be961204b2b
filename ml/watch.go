package ml

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchArtifact watches the model artifact on disk and logs when it is
// rewritten. The loaded model is immutable for the process lifetime,
// so a change only means a restart is needed to pick it up.
func WatchArtifact(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	target, err := filepath.Abs(path)
	if err != nil {
		target = path
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, err := filepath.Abs(event.Name)
				if err != nil || name != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					log.Printf("Model artifact %s changed on disk; restart to load the new model", path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Artifact watcher error: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
