package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the .env and calibration files for changes and updates
// runtime config. Calibration changes are propagated to registered callbacks
// so threshold caches can invalidate without a restart.
type Watcher struct {
	config              *Config
	envPath             string
	calibrationPath     string
	watcher             *fsnotify.Watcher
	stopChan            chan struct{}
	lastEnvModTime      time.Time
	lastCalibModTime    time.Time
	mu                  sync.RWMutex
	onCalibrationReload func()
}

// NewWatcher creates a new config watcher.
func NewWatcher(config *Config) (*Watcher, error) {
	envPath := filepath.Join(config.DataPath, ".env")
	if config.DataPath == "" {
		envPath = "/etc/singura/.env"
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:          config,
		envPath:         envPath,
		calibrationPath: config.CalibrationPath,
		watcher:         watcher,
		stopChan:        make(chan struct{}),
	}

	// Get initial mod times
	if stat, err := os.Stat(envPath); err == nil {
		w.lastEnvModTime = stat.ModTime()
	}
	if stat, err := os.Stat(w.calibrationPath); err == nil {
		w.lastCalibModTime = stat.ModTime()
	}

	return w, nil
}

// SetCalibrationReloadCallback sets the callback invoked when the calibration
// file changes.
func (w *Watcher) SetCalibrationReloadCallback(callback func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onCalibrationReload = callback
}

// Start begins watching the config files.
func (w *Watcher) Start() error {
	// Watch the directory for .env; editors replace files, so watching the
	// file directly would lose the watch after the first save.
	dir := filepath.Dir(w.envPath)
	err := w.watcher.Add(dir)
	if err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("Failed to watch config directory")
	}

	calibDir := filepath.Dir(w.calibrationPath)
	if calibDir != dir {
		if err := w.watcher.Add(calibDir); err != nil {
			log.Warn().Err(err).Str("path", calibDir).Msg("Failed to watch calibration directory")
		}
	}

	if err != nil {
		log.Warn().Msg("Falling back to polling for config changes")
		go w.pollForChanges()
		return nil
	}

	go w.watchForChanges()
	log.Info().
		Str("env_path", w.envPath).
		Str("calibration_path", w.calibrationPath).
		Msg("Started watching config files for changes")
	return nil
}

// Stop stops the config watcher.
func (w *Watcher) Stop() {
	select {
	case <-w.stopChan:
		// Already stopped
		return
	default:
		close(w.stopChan)
	}
	w.watcher.Close()
}

// Reload manually triggers a reload of both files (e.g., from SIGHUP).
func (w *Watcher) Reload() {
	w.reloadEnv()
	w.reloadCalibration()
}

// watchForChanges handles fsnotify events.
func (w *Watcher) watchForChanges() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) == ".env" || event.Name == w.envPath {
				// Debounce - wait a bit for write to complete
				time.Sleep(100 * time.Millisecond)

				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					log.Info().Str("event", event.Op.String()).Msg("Detected .env file change")
					w.reloadEnv()
				}
			}

			if event.Name == w.calibrationPath || filepath.Base(event.Name) == filepath.Base(w.calibrationPath) {
				// Debounce - wait a bit for write to complete
				time.Sleep(100 * time.Millisecond)

				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					log.Info().Str("event", event.Op.String()).Msg("Detected calibration file change")
					w.reloadCalibration()
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Config watcher error")

		case <-w.stopChan:
			return
		}
	}
}

// pollForChanges is a fallback that polls for changes.
func (w *Watcher) pollForChanges() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if stat, err := os.Stat(w.envPath); err == nil {
				if stat.ModTime().After(w.lastEnvModTime) {
					log.Info().Msg("Detected .env file change via polling")
					w.lastEnvModTime = stat.ModTime()
					w.reloadEnv()
				}
			}

			if stat, err := os.Stat(w.calibrationPath); err == nil {
				if stat.ModTime().After(w.lastCalibModTime) {
					log.Info().Msg("Detected calibration file change via polling")
					w.lastCalibModTime = stat.ModTime()
					w.reloadCalibration()
				}
			}

		case <-w.stopChan:
			return
		}
	}
}

// reloadEnv reloads runtime-adjustable settings from the .env file.
func (w *Watcher) reloadEnv() {
	w.mu.Lock()
	defer w.mu.Unlock()

	envMap, err := godotenv.Read(w.envPath)
	if err != nil {
		// File might not exist, which is fine
		if !os.IsNotExist(err) {
			log.Error().Err(err).Msg("Failed to read .env file")
			return
		}
		envMap = make(map[string]string)
	}

	// Track what changed
	var changes []string

	newLevel := strings.Trim(envMap["SINGURA_LOG_LEVEL"], "'\"")
	if newLevel != "" && newLevel != w.config.LogLevel {
		w.config.LogLevel = newLevel
		switch newLevel {
		case "debug":
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		case "warn":
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		case "error":
			zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		default:
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		changes = append(changes, "log level updated")
	}

	newTZ := strings.Trim(envMap["SINGURA_DEFAULT_TIMEZONE"], "'\"")
	if newTZ != "" && newTZ != w.config.DefaultTimezone {
		if _, err := time.LoadLocation(newTZ); err != nil {
			log.Warn().Str("timezone", newTZ).Msg("Ignoring invalid timezone from .env file")
		} else {
			w.config.DefaultTimezone = newTZ
			changes = append(changes, "default timezone updated")
		}
	}

	if len(changes) > 0 {
		log.Info().
			Strs("changes", changes).
			Msg("Applied .env file changes to runtime config")
	} else {
		log.Debug().Msg("No relevant changes detected in .env file")
	}
}

// reloadCalibration notifies listeners that the calibration file changed.
func (w *Watcher) reloadCalibration() {
	w.mu.Lock()
	callback := w.onCalibrationReload
	w.mu.Unlock()

	if _, err := os.Stat(w.calibrationPath); err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", w.calibrationPath).Msg("Calibration file not found")
			return
		}
		log.Error().Err(err).Msg("Failed to stat calibration file")
		return
	}

	if callback != nil {
		log.Info().Str("path", w.calibrationPath).Msg("Reloading thresholds due to calibration change")
		go callback()
	}
}
