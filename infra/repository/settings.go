package repository

import (
	"context"

	"github.com/amirasaad/accrual/pkg/domain/settings"
	"github.com/amirasaad/accrual/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository returns a gorm-backed settings repository.
func NewSettingsRepository(db *gorm.DB) repository.SettingsRepository {
	return &settingsRepository{db: db}
}

// Get implements repository.SettingsRepository.
func (r *settingsRepository) Get(ctx context.Context) (*settings.Settings, error) {
	var m Setting
	if err := r.db.WithContext(ctx).First(&m, "id = ?", singletonID).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapSettingToDomain(&m), nil
}

// Save implements repository.SettingsRepository. The single row is upserted.
func (r *settingsRepository) Save(ctx context.Context, s *settings.Settings) error {
	m := mapSettingToModel(s)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&m).Error
	})
}
