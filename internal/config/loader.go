package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/scapslice/internal/analyzer"
	"github.com/gyaneshwarpardhi/scapslice/internal/oval"
	"github.com/gyaneshwarpardhi/scapslice/internal/rewrite"
)

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.Graph.ConflictPolicy == "" {
		cfg.Graph.ConflictPolicy = oval.KeepLast
	}
	if cfg.Serializer.KeepNamespace == nil {
		cfg.Serializer.KeepNamespace = append([]string(nil), oval.DefaultKeepNamespace...)
	}
	if cfg.Serializer.Indent == "" {
		cfg.Serializer.Indent = "  "
	}
	if cfg.Analyzer.DefaultPlatform == "" {
		cfg.Analyzer.DefaultPlatform = analyzer.Windows
	}
	if len(cfg.Analyzer.Capabilities) == 0 {
		cfg.Analyzer.Capabilities = analyzer.DefaultCapabilities()
	}
	if len(cfg.Analyzer.RegexRules) == 0 {
		cfg.Analyzer.RegexRules = analyzer.DefaultRegexRules()
	}
	d := rewrite.DefaultOptions()
	r := &cfg.Rewriter
	if r.DefinitionID == "" {
		r.DefinitionID = d.DefinitionID
	}
	if r.TestIDFormat == "" {
		r.TestIDFormat = d.TestIDFormat
	}
	if r.StateIDFormat == "" {
		r.StateIDFormat = d.StateIDFormat
	}
	if r.VariableIDFormat == "" {
		r.VariableIDFormat = d.VariableIDFormat
	}
	if r.TrusteeField == "" {
		r.TrusteeField = d.TrusteeField
	}
	if r.ReplacementField == "" {
		r.ReplacementField = d.ReplacementField
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = runtime.NumCPU()
	}
	if cfg.Engine.QueueDepth == 0 {
		cfg.Engine.QueueDepth = 1000
	}
}

// Loader reads a YAML config file and watches it for changes. An empty path
// or a missing file yields the built-in defaults.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on file
// changes. The parent directory is watched so that editors which replace the
// file are picked up. Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	if l.path == "" {
		return nil, errors.New("config watcher: no config file")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", dir, err)
	}
	target := filepath.Clean(l.path)

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("config reload failed, keeping previous config", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the config file. On error the
// current config is kept.
func (l *Loader) Reload() (*Config, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Config), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (*Config, error) {
	if l.path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
