package ui

import (
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// watchFile reloads the lesson when the file changes on disk. Editors tend
// to fire bursts of write/rename events per save; the limiter collapses
// each burst into one reload.
func watchFile(path string, events chan<- tea.Msg, done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, not the file: editors that save via rename
	// replace the inode and a file-level watch would go stale.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	limiter := rate.NewLimiter(rate.Every(300*time.Millisecond), 1)
	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if !limiter.Allow() {
					continue
				}
				body, err := os.ReadFile(path)
				if err != nil {
					log.Debug("reload read failed", "path", path, "err", err)
					continue
				}
				select {
				case events <- fileReloadedMsg{body: body}:
				case <-done:
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("file watcher error", "err", err)
			}
		}
	}()
	return nil
}
