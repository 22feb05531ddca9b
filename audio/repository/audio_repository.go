package repository

import (
	"context"
	"errors"
	"fmt"

	"audio-library/backend/audio/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no record matches
	ErrNotFound = errors.New("audio asset not found")
	// ErrInvalidID is returned when an identifier is malformed for the backend
	ErrInvalidID = errors.New("invalid audio asset id")
)

// AudioRepository is the document-store contract for audio asset records.
// Implementations must be safe for concurrent use.
type AudioRepository interface {
	Create(ctx context.Context, asset *models.AudioAsset) error
	// FindByLanguage returns the most recently created asset for language
	FindByLanguage(ctx context.Context, language string) (*models.AudioAsset, error)
	FindByID(ctx context.Context, id string) (*models.AudioAsset, error)
	List(ctx context.Context) ([]models.AudioAsset, error)
	// CountByLanguage groups assets by language, sorted ascending by code
	CountByLanguage(ctx context.Context) ([]models.LanguageCount, error)
	Update(ctx context.Context, id string, patch models.AssetPatch) (*models.AudioAsset, error)
	// Delete returns the number of removed records
	Delete(ctx context.Context, id string) (int64, error)
	Ping(ctx context.Context) error
}

// GormAudioRepository stores assets in a relational table through gorm
type GormAudioRepository struct {
	db *gorm.DB
}

func NewGormAudioRepository(db *gorm.DB) *GormAudioRepository {
	return &GormAudioRepository{db: db}
}

// Migrate creates the table and its indexes
func (r *GormAudioRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.AudioAsset{})
}

func (r *GormAudioRepository) Create(ctx context.Context, asset *models.AudioAsset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

func (r *GormAudioRepository) FindByLanguage(ctx context.Context, language string) (*models.AudioAsset, error) {
	var asset models.AudioAsset
	err := r.db.WithContext(ctx).
		Where("language = ?", language).
		Order("created_at DESC").
		First(&asset).Error
	if err != nil {
		return nil, translate(err)
	}
	return &asset, nil
}

func (r *GormAudioRepository) FindByID(ctx context.Context, id string) (*models.AudioAsset, error) {
	if err := validUUID(id); err != nil {
		return nil, err
	}
	var asset models.AudioAsset
	if err := r.db.WithContext(ctx).First(&asset, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &asset, nil
}

func (r *GormAudioRepository) List(ctx context.Context) ([]models.AudioAsset, error) {
	var assets []models.AudioAsset
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&assets).Error
	return assets, err
}

func (r *GormAudioRepository) CountByLanguage(ctx context.Context) ([]models.LanguageCount, error) {
	var rows []models.LanguageCount
	err := r.db.WithContext(ctx).
		Model(&models.AudioAsset{}).
		Select("language, count(*) AS count").
		Group("language").
		Order("language ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *GormAudioRepository) Update(ctx context.Context, id string, patch models.AssetPatch) (*models.AudioAsset, error) {
	if err := validUUID(id); err != nil {
		return nil, err
	}

	var asset models.AudioAsset
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&asset, "id = ?", id).Error; err != nil {
			return err
		}
		fields := patch.Fields()
		fields["updated_at"] = tx.NowFunc()
		if err := tx.Model(&asset).Updates(fields).Error; err != nil {
			return err
		}
		return tx.First(&asset, "id = ?", id).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &asset, nil
}

func (r *GormAudioRepository) Delete(ctx context.Context, id string) (int64, error) {
	if err := validUUID(id); err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.AudioAsset{})
	return result.RowsAffected, result.Error
}

func (r *GormAudioRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func validUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
