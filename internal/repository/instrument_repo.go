package repository

import (
	"context"
	"fmt"

	"stock-monitor/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InstrumentRepository interface {
	Load(ctx context.Context) ([]model.InstrumentConfig, error)
	Upsert(ctx context.Context, cfg *model.InstrumentConfig) error
	Update(ctx context.Context, cfg *model.InstrumentConfig) error
	Delete(ctx context.Context, code string) error
	SaveOrder(ctx context.Context, codes []string) error
}

type instrumentRepository struct {
	db *gorm.DB
}

func NewInstrumentRepository(db *gorm.DB) InstrumentRepository {
	return &instrumentRepository{
		db: db,
	}
}

// Load returns all tracked instruments in their user-visible order.
func (r *instrumentRepository) Load(ctx context.Context) ([]model.InstrumentConfig, error) {
	var configs []model.InstrumentConfig
	if err := r.db.WithContext(ctx).Order("position ASC, id ASC").Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to load instruments: %w", err)
	}
	return configs, nil
}

// Upsert inserts the config or, when the code already exists, overwrites its
// name, threshold and enabled flag. Position is assigned at the tail for new
// rows and left alone on conflict.
func (r *instrumentRepository) Upsert(ctx context.Context, cfg *model.InstrumentConfig) error {
	if cfg.Position == 0 {
		var maxPos int64
		r.db.WithContext(ctx).Model(&model.InstrumentConfig{}).Count(&maxPos)
		cfg.Position = int(maxPos)
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "fallback_threshold_percent", "enabled", "updated_at"}),
	}).Create(cfg).Error
	if err != nil {
		return fmt.Errorf("failed to upsert instrument %s: %w", cfg.Code, err)
	}
	return nil
}

func (r *instrumentRepository) Update(ctx context.Context, cfg *model.InstrumentConfig) error {
	if err := r.db.WithContext(ctx).Model(&model.InstrumentConfig{}).
		Where("code = ?", cfg.Code).
		Updates(map[string]interface{}{
			"name":                       cfg.Name,
			"fallback_threshold_percent": cfg.FallbackThresholdPercent,
			"enabled":                    cfg.Enabled,
		}).Error; err != nil {
		return fmt.Errorf("failed to update instrument %s: %w", cfg.Code, err)
	}
	return nil
}

func (r *instrumentRepository) Delete(ctx context.Context, code string) error {
	if err := r.db.WithContext(ctx).Where("code = ?", code).Delete(&model.InstrumentConfig{}).Error; err != nil {
		return fmt.Errorf("failed to delete instrument %s: %w", code, err)
	}
	return nil
}

// SaveOrder persists a full ordering pass, one position per code.
func (r *instrumentRepository) SaveOrder(ctx context.Context, codes []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, code := range codes {
			if err := tx.Model(&model.InstrumentConfig{}).
				Where("code = ?", code).
				Update("position", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save instrument order: %w", err)
	}
	return nil
}
