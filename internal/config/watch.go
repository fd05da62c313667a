package config

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// catalogFile tracks the version of catalog.yaml that was last applied or rejected.
type catalogFile struct {
	path    string
	modTime time.Time
	size    int64
}

// changed reports whether the file differs from the tracked version and
// records the new one.
func (f *catalogFile) changed() (bool, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return false, err
	}
	if info.ModTime().Equal(f.modTime) && info.Size() == f.size {
		return false, nil
	}
	f.modTime, f.size = info.ModTime(), info.Size()
	return true, nil
}

// poll loads the catalog when the file changed. A nil config means there is
// nothing new to apply. A rejected edit is not retried until the file changes again.
func (f *catalogFile) poll() (*CatalogConfig, error) {
	changed, err := f.changed()
	if err != nil || !changed {
		return nil, err
	}
	return LoadCatalogConfig(f.path)
}

// WatchCatalog applies catalog.yaml once before returning, then polls it every
// interval and applies each edit that validates. Invalid edits are logged and
// the previously applied catalog stays in effect.
func WatchCatalog(ctx context.Context, path string, interval time.Duration, logger zerolog.Logger, onUpdate func(*CatalogConfig)) error {
	if path == "" {
		path = "configs/catalog.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	file := &catalogFile{path: path}
	cfg, err := file.poll()
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	log := logger.With().Str("component", "catalog_watch").Str("path", path).Logger()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			cfg, err := file.poll()
			switch {
			case errors.Is(err, os.ErrNotExist):
				log.Debug().Msg("catalog file missing, keeping current catalog")
			case err != nil:
				log.Warn().Err(err).Msg("catalog reload rejected")
			case cfg != nil && onUpdate != nil:
				onUpdate(cfg)
			}
		}
	}()

	return nil
}
