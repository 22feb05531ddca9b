package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AudioAsset is the persisted record for one uploaded audio file
type AudioAsset struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Language  string    `json:"language" gorm:"size:8;not null;index;index:idx_audio_language_created,priority:1"`
	Filename  string    `json:"filename" gorm:"size:255;not null;uniqueIndex"`
	URL       string    `json:"url" gorm:"not null"`
	FileSize  int64     `json:"file_size" gorm:"not null;default:0"`
	Duration  *float64  `json:"duration"`
	Format    string    `json:"format" gorm:"size:16;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index;index:idx_audio_language_created,priority:2,sort:desc"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AudioAsset) TableName() string {
	return "audio_files"
}

// BeforeCreate assigns the identifier when the caller left it empty
func (a *AudioAsset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// AssetPatch is a partial update. Nil fields are left untouched.
type AssetPatch struct {
	Language *string  `json:"language,omitempty"`
	FileSize *int64   `json:"file_size,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Format   *string  `json:"format,omitempty"`
	URL      *string  `json:"url,omitempty"`
}

// Fields returns the column/value pairs present in the patch
func (p AssetPatch) Fields() map[string]any {
	fields := make(map[string]any)
	if p.Language != nil {
		fields["language"] = *p.Language
	}
	if p.FileSize != nil {
		fields["file_size"] = *p.FileSize
	}
	if p.Duration != nil {
		fields["duration"] = *p.Duration
	}
	if p.Format != nil {
		fields["format"] = *p.Format
	}
	if p.URL != nil {
		fields["url"] = *p.URL
	}
	return fields
}

// Apply copies the present fields onto a and stamps updatedAt
func (p AssetPatch) Apply(a *AudioAsset, updatedAt time.Time) {
	if p.Language != nil {
		a.Language = *p.Language
	}
	if p.FileSize != nil {
		a.FileSize = *p.FileSize
	}
	if p.Duration != nil {
		d := *p.Duration
		a.Duration = &d
	}
	if p.Format != nil {
		a.Format = *p.Format
	}
	if p.URL != nil {
		a.URL = *p.URL
	}
	a.UpdatedAt = updatedAt
}

// LanguageCount is one row of the per-language aggregate
type LanguageCount struct {
	Language string
	Count    int64
}

// LanguageSummary is the public view of a language group
type LanguageSummary struct {
	Language     string `json:"language"`
	LanguageName string `json:"language_name"`
	Count        int64  `json:"count"`
}

// UploadResponse is returned after a successful upload
type UploadResponse struct {
	Message   string      `json:"message"`
	AudioFile *AudioAsset `json:"audio_file"`
}
