package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	u "lautenbacher.net/capraclock/util"
)

const reloadDebounce = 500 * time.Millisecond

// Holder keeps the current configuration and replaces it when the config
// file changes. Each published *Config is itself immutable.
type Holder struct {
	cfile   string
	current *u.Latest[*Config]

	// serialises reloads coming from the watcher, SIGHUP and the web API
	reloadMutex sync.Mutex
}

// NewHolder creates a Holder for cfile starting out with initial. An empty
// cfile means the configuration can never be reloaded.
func NewHolder(cfile string, initial *Config) *Holder {
	return &Holder{
		cfile:   cfile,
		current: u.NewLatest(initial),
	}
}

// Current returns the configuration in effect.
func (h *Holder) Current() *Config {
	return h.current.Value()
}

// Changed is signalled after every successful reload.
func (h *Holder) Changed() <-chan struct{} {
	return h.current.Changed()
}

// Path returns the config file this holder reloads from.
func (h *Holder) Path() string {
	return h.cfile
}

// Reload reads the config file again. If it can't be read or is invalid, the
// previous configuration stays in effect and the error is returned.
func (h *Holder) Reload() error {
	h.reloadMutex.Lock()
	defer h.reloadMutex.Unlock()

	if h.cfile == "" {
		return nil
	}
	conf, err := Load(h.cfile)
	if err != nil {
		slog.Error("Config reload failed, keeping previous configuration", "file", h.cfile, "error", err)
		return err
	}
	old := h.current.Value()
	h.current.Publish(conf)
	logChanges(old, conf)
	slog.Info("Configuration reloaded", "file", h.cfile)
	return nil
}

// Watch reloads the configuration whenever the config file is written. It
// returns once the watcher is set up; watching ends when ctx is cancelled.
func (h *Holder) Watch(ctx context.Context) error {
	if h.cfile == "" {
		slog.Info("No config file given, watcher disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Editors and os.WriteFile may replace the file, so the directory is
	// watched instead of the file itself.
	if err := watcher.Add(filepath.Dir(h.cfile)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	slog.Info("Watching config file for changes", "file", h.cfile)

	go h.watchLoop(ctx, watcher)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	target := filepath.Clean(h.cfile)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Ending config watcher go-routine...")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			slog.Debug("Config file changed", "op", event.Op.String())
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				_ = h.Reload()
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		}
	}
}

func logChanges(old, conf *Config) {
	if old == nil {
		return
	}
	if o, n := old.NetworkCandidates(), conf.NetworkCandidates(); !slices.Equal(o, n) {
		slog.Info("Config changed: WiFi.SSIDs", "old", o, "new", n)
	}
	if old.SharedPassword() != conf.SharedPassword() {
		slog.Info("Config changed: WiFi.Password")
	}
	if old.DateFeatureEnabled() != conf.DateFeatureEnabled() {
		slog.Info("Config changed: Features.EnableDate", "new", conf.DateFeatureEnabled())
	}
	if old.SensorsFeatureEnabled() != conf.SensorsFeatureEnabled() {
		slog.Info("Config changed: Features.EnableSensors", "new", conf.SensorsFeatureEnabled())
	}
	if old.LogoFeatureEnabled() != conf.LogoFeatureEnabled() {
		slog.Info("Config changed: Features.ShowLogo", "new", conf.LogoFeatureEnabled())
	}
}
