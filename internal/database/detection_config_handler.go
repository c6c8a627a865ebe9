package database

import (
	"context"
	"errors"

	"ipsentry/internal/domain"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// GetEnabledDetectionConfig returns the single enabled configuration. When no
// enabled row exists the hard-coded default is synthesized, persisted, and
// returned; the analysis pass never fails over a missing configuration.
func GetEnabledDetectionConfig(ctx context.Context) (domain.DetectionConfig, error) {
	db, err := conn(ctx)
	if err != nil {
		return domain.DetectionConfig{}, err
	}

	var cfg domain.DetectionConfig
	err = db.Where("enabled = ?", true).Order("id ASC").First(&cfg).Error
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DetectionConfig{}, err
	}

	cfg = domain.DefaultDetectionConfig()
	if err := db.Create(&cfg).Error; err != nil {
		return domain.DetectionConfig{}, err
	}
	log.Info("No enabled detection config found, created default", "name", cfg.Name)
	return cfg, nil
}

// SaveDetectionConfig persists operator edits to a configuration row.
func SaveDetectionConfig(ctx context.Context, cfg *domain.DetectionConfig) error {
	db, err := conn(ctx)
	if err != nil {
		return err
	}
	return db.Save(cfg).Error
}
