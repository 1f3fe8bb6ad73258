package serv

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reload re-reads the config file and swaps in a new engine. The MongoDB
// client is kept, the database handle is reopened over the new engine.
// Nothing changes when the catalog fingerprint is unchanged.
func (s1 *Service) Reload(ctx context.Context) error {
	old := s1.load()

	cf := old.conf.ConfigFileUsed()
	if cf == "" {
		return fmt.Errorf("config was not read from a file")
	}

	conf, err := ReadInConfigFS(cf, old.fs)
	if err != nil {
		return err
	}

	opts := append(append([]Option(nil), s1.opts...), OptionSetLogger(old.root))
	s, err := newService(conf, opts...)
	if err != nil {
		return err
	}

	if s.engine.Fingerprint() == old.engine.Fingerprint() {
		s.shutdownTracing(ctx)
		old.log.Debug("config reloaded, catalog unchanged")
		return nil
	}

	s.level = old.level
	s.client = old.client
	s.ownClient = old.ownClient

	if old.db != nil {
		if err := s.connect(ctx); err != nil {
			s.shutdownTracing(ctx)
			return err
		}
	}
	if !s1.CompareAndSwap(old, s) {
		s.release(ctx, old)
		return fmt.Errorf("service changed during reload")
	}

	if old.db != nil {
		old.db.Close() //nolint:errcheck
	}
	old.shutdownTracing(ctx)

	s.zlog.Info("catalog reloaded",
		zap.Uint64("catalog", s.engine.Fingerprint()),
		zap.Int("entities", len(s.engine.Entities())))
	return nil
}

// Watch reloads the service whenever its config file changes, until ctx
// is done. Reload errors are logged and the previous state is kept.
func (s1 *Service) Watch(ctx context.Context) error {
	s := s1.load()
	if s.conf.Production {
		return fmt.Errorf("config reloading is disabled in production")
	}

	cf := s.conf.ConfigFileUsed()
	if cf == "" {
		return fmt.Errorf("config was not read from a file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close() //nolint:errcheck

	// editors replace files, so watch the directory
	if err := watcher.Add(filepath.Dir(cf)); err != nil {
		return err
	}
	name := filepath.Base(cf)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s1.Reload(ctx); err != nil {
				s1.Logger().Errorf("config reload: %s", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s1.Logger().Warnf("config watcher: %s", err)
		}
	}
}

func (s *mbService) shutdownTracing(ctx context.Context) {
	if s.tp != nil {
		s.tp.Shutdown(ctx) //nolint:errcheck
	}
}
