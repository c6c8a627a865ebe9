package config

import (
	_ "embed"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Config holds the runtime-tunable settings of the analyzer. Detection
// thresholds live in the database (DetectionConfig); this file only carries
// process-level knobs.
type Config struct {
	Registry struct {
		// RefreshTimer controls how often the in-process blocked-IP
		// snapshot is reloaded from the database.
		RefreshTimer Timer `json:"refresh_timer"`
	} `json:"registry"`

	Analysis struct {
		DetectionTimer Timer `json:"detection_timer"`
		SweepTimer     Timer `json:"sweep_timer"`
		ReportTimer    Timer `json:"report_timer"`
	} `json:"analysis"`

	Geolocation struct {
		// Providers are tried in order; first success wins.
		Providers            []string `json:"providers"`
		CacheTTLHours        uint32   `json:"cache_ttl_hours"`
		LookupTimeoutSeconds uint32   `json:"lookup_timeout_seconds"`
		GeoLiteDBPath        string   `json:"geolite_db_path"`
		MaintenanceTimer     Timer    `json:"maintenance_timer"`
	} `json:"geolocation"`

	Alerts struct {
		Recipients []string `json:"recipients"`
		From       string   `json:"from"`
	} `json:"alerts"`
}

const settingsFilePath = "data/settings.json"

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
	configMu    sync.Mutex

	InProductionMode bool
)

func init() {
	configValue.Store(Config{})
}

// ReadSettings loads data/settings.json, creating it from the embedded
// defaults when missing, and applies the result.
func ReadSettings() {
	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Settings file not found, creating with default configuration")

			if err := os.MkdirAll("data", os.ModePerm); err != nil {
				log.Error("Error creating directory for settings file:", err)
				return
			}

			if err := os.WriteFile(settingsFilePath, defaultConfig, os.ModePerm); err != nil {
				log.Error("Error writing default settings file:", err)
				return
			}

			data = defaultConfig
		} else {
			log.Error("Error reading settings file:", err)
			return
		}
	}

	var newConfig Config
	if err := json.Unmarshal(data, &newConfig); err != nil {
		log.Error("Error unmarshalling settings file:", err)
		return
	}

	applyConfigUpdate(newConfig, false)
	log.Debug("Settings file loaded successfully")
}

// SetConfig applies the configuration and persists it back to disk.
func SetConfig(newConfig Config) {
	applyConfigUpdate(newConfig, true)
}

func applyConfigUpdate(newConfig Config, persist bool) {
	configMu.Lock()
	defer configMu.Unlock()

	configValue.Store(newConfig)
	SetIntervals()

	if !persist {
		return
	}

	data, err := json.MarshalIndent(newConfig, "", "  ")
	if err != nil {
		log.Error("Error marshalling new configuration:", err)
		return
	}
	if err := os.WriteFile(settingsFilePath, data, os.ModePerm); err != nil {
		log.Error("Error writing new configuration to file:", err)
	}
}

func GetConfig() Config {
	return configValue.Load().(Config)
}

func SetProductionMode(productionMode bool) {
	InProductionMode = productionMode
}
