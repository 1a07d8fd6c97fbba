package exportbridge

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"pdmrelease/internal/bootstrap/logging"
	"pdmrelease/internal/errs"
)

// WatchProfile reloads the bridge profile from path whenever the file changes,
// until ctx is done. A profile that fails to load is logged and the previous
// one stays active.
func (b *ExecBridge) WatchProfile(ctx context.Context, path string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return errs.Wrapf(err, "resolve bridge profile %s", path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create profile watcher")
	}
	defer watcher.Close()

	// Editors replace files by rename, so the directory is watched.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return errs.Wrapf(err, "watch bridge profile dir %s", filepath.Dir(target))
	}

	logCtx := logging.WithAttrs(logging.WithComponent(ctx, "exportbridge.exec"), slog.String("profile", target))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			profile, err := LoadExecProfile(target)
			if err != nil {
				logging.Warn(logCtx, "bridge profile reload failed, keeping previous", slog.Any("err", errs.Loggable(err)))
				continue
			}
			b.setProfile(profile)
			logging.Info(logCtx, "bridge profile reloaded", slog.String("program", profile.Program))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "bridge profile watcher error", slog.Any("err", errs.Loggable(err)))
		}
	}
}
