package ml

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloaderOptions configures a Reloader.
type ReloaderOptions struct {
	// ExpectFeatures rejects artifacts trained on a different schema width.
	ExpectFeatures int
	// CacheSize enables a prediction cache per loaded artifact when positive.
	CacheSize int
	// Debounce coalesces bursts of file events. Defaults to 200ms.
	Debounce time.Duration
	Logger   *zap.Logger
	// OnReload is called after every reload attempt triggered by Watch.
	OnReload func(name string, err error)
}

type loadedModel struct {
	model Model
	info  Info
}

// Reloader serves predictions from the artifact at a path and swaps in a new
// model when the file changes. A failed reload keeps the previous model.
type Reloader struct {
	name    string
	path    string
	opts    ReloaderOptions
	logger  *zap.Logger
	current atomic.Pointer[loadedModel]
}

// NewReloader loads the artifact once; an error here means the service
// cannot start.
func NewReloader(name, path string, opts ReloaderOptions) (*Reloader, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reloader{
		name:   name,
		path:   filepath.Clean(path),
		opts:   opts,
		logger: logger.With(zap.String("model", name), zap.String("path", path)),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reloader) Predict(features []float64) (int, float64, error) {
	loaded := r.current.Load()
	if loaded == nil {
		return 0, 0, ErrModelNotLoaded
	}
	return loaded.model.Predict(features)
}

func (r *Reloader) Info() Info {
	if loaded := r.current.Load(); loaded != nil {
		return loaded.info
	}
	return Info{Name: r.name, Path: r.path}
}

// Reload reads the artifact again and swaps it in on success.
func (r *Reloader) Reload() error {
	model, info, err := LoadModel(r.path, r.opts.ExpectFeatures)
	if err != nil {
		return err
	}
	info.Name = r.name
	if r.opts.CacheSize > 0 {
		cached, err := NewCachedModel(model, r.opts.CacheSize)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrArtifactLoad, err)
		}
		model = cached
	}
	r.current.Store(&loadedModel{model: model, info: info})
	r.logger.Info("model loaded",
		zap.String("format", info.Format),
		zap.String("version", info.Version),
		zap.Int("n_features", info.NFeatures))
	return nil
}

// Watch reloads the artifact whenever it is written, created or renamed into
// place. It blocks until ctx is cancelled. The parent directory is watched so
// atomic replace-by-rename is seen.
func (r *Reloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return err
	}
	r.logger.Info("watching model artifact")

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(r.opts.Debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			err := r.Reload()
			if err != nil {
				r.logger.Error("model reload failed, keeping previous model", zap.Error(err))
			}
			if r.opts.OnReload != nil {
				r.opts.OnReload(r.name, err)
			}
		}
	}
}
