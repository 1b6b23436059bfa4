package config

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/relistr/relistr/internal/errors"
	"github.com/relistr/relistr/internal/logging"
)

// Loader handles configuration loading and hot-reloading.
type Loader struct {
	path     string
	logger   *logging.Logger
	mu       sync.RWMutex
	config   *Config
	onChange func(*Config)
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(path string, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Loader{
		path:     path,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Load reads the configuration from the file
func (l *Loader) Load() (*Config, error) {
	content, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.ErrConfigNotFound{Path: l.path}
		}
		return nil, &errors.ErrFileRead{Path: l.path, Err: err}
	}

	config, err := Parse(substituteEnvVars(content))
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.config = config
	l.mu.Unlock()

	return config, nil
}

// Get returns the current configuration
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// SetOnChange sets a callback to be called when configuration changes
func (l *Loader) SetOnChange(fn func(*Config)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// StartWatcher watches the config file and reloads it on change. A reload
// that fails validation keeps the previous configuration.
func (l *Loader) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(l.path); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-l.stopChan:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					l.reload()
				}
			case <-watcher.Errors:
				// transient watcher errors are not actionable; the next
				// event will retry
			}
		}
	}()

	return nil
}

// StopWatcher stops the file watcher
func (l *Loader) StopWatcher() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
}

func (l *Loader) reload() {
	config, err := l.Load()
	if err != nil {
		l.logger.Warn("config reload failed, keeping previous configuration", "error", err.Error())
		return
	}

	l.mu.RLock()
	onChange := l.onChange
	l.mu.RUnlock()

	l.logger.Info("configuration reloaded", "path", l.path)
	if onChange != nil {
		onChange(config)
	}
}

// LoadFromEnv loads configuration using the path from RELISTR_CONFIG_PATH
// or the default config.yaml.
func LoadFromEnv(logger *logging.Logger) (*Config, error) {
	path := os.Getenv("RELISTR_CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return NewLoader(path, logger).Load()
}

// Parse parses configuration from a byte slice, applying defaults first.
func Parse(data []byte) (*Config, error) {
	config := Default()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, &errors.ErrConfigParse{Err: err}
	}
	if err := config.Validate(); err != nil {
		return nil, &errors.ErrConfigValidation{Err: err}
	}
	return config, nil
}

func substituteEnvVars(content []byte) []byte {
	return []byte(os.ExpandEnv(string(content)))
}
