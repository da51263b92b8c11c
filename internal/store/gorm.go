package store

import (
	"context"
	"errors"

	"storepulse/internal/models"

	"gorm.io/gorm"
)

// Gorm implements every collaborator interface on top of a gorm.DB.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) GetConnection(ctx context.Context, id string) (*models.Connection, error) {
	var conn models.Connection
	if err := s.db.WithContext(ctx).First(&conn, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &conn, nil
}

func (s *Gorm) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	var dev models.Device
	if err := s.db.WithContext(ctx).First(&dev, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &dev, nil
}

func (s *Gorm) GetTemplate(ctx context.Context, id string) (*models.MessageTemplate, error) {
	var tmpl models.MessageTemplate
	if err := s.db.WithContext(ctx).First(&tmpl, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &tmpl, nil
}

func (s *Gorm) GetAutomation(ctx context.Context, id string) (*models.Automation, error) {
	var a models.Automation
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &a, nil
}

func (s *Gorm) ListActiveByPlatform(ctx context.Context, platform string) ([]models.Automation, error) {
	var automations []models.Automation
	err := s.db.WithContext(ctx).
		Joins("JOIN connections ON connections.id = automations.connection_id").
		Where("automations.is_active = ? AND connections.platform = ?", true, platform).
		Find(&automations).Error
	if err != nil {
		return nil, err
	}
	return automations, nil
}

func (s *Gorm) IsAutomationActive(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Automation{}).
		Where("id = ? AND is_active = ?", id, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Gorm) RecordDispatch(ctx context.Context, entry *models.DispatchLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
