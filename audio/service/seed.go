package service

import (
	"context"
	"errors"

	"audio-library/backend/audio/models"
	"audio-library/backend/audio/repository"
	apperrors "audio-library/backend/pkg/errors"
)

// SampleAsset describes a record created by Seed. No file is written.
type SampleAsset struct {
	Language string
	Filename string
	FileSize int64
	Duration float64
	Format   string
}

// DefaultSamples holds one sample per supported language
var DefaultSamples = []SampleAsset{
	{Language: "en", Filename: "sample_english.mp3", FileSize: 1024000, Duration: 30.5, Format: "mp3"},
	{Language: "ar", Filename: "sample_arabic.mp3", FileSize: 1200000, Duration: 35.2, Format: "mp3"},
}

// Seed creates sample records for languages that have none yet and returns
// how many were created
func (s *AudioService) Seed(ctx context.Context, samples []SampleAsset) (int, error) {
	created := 0
	for _, sample := range samples {
		lang := NormalizeLanguage(sample.Language)
		if !IsKnownLanguage(lang) {
			return created, apperrors.NewValidationError(ReasonLanguage).WithDetail(sample.Language)
		}

		storeCtx, cancel := s.storeContext(ctx)
		_, err := s.repo.FindByLanguage(storeCtx, lang)
		cancel()
		if err == nil {
			s.log.Info("sample already present, skipping", "language", lang)
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return created, apperrors.NewStorageError("failed to query audio files", err)
		}

		duration := sample.Duration
		asset := &models.AudioAsset{
			Language: lang,
			Filename: sample.Filename,
			URL:      s.FileURL(sample.Filename),
			FileSize: sample.FileSize,
			Duration: &duration,
			Format:   sample.Format,
		}

		storeCtx, cancel = s.storeContext(ctx)
		err = s.repo.Create(storeCtx, asset)
		cancel()
		if err != nil {
			return created, apperrors.NewStorageError("failed to save audio record", err)
		}

		created++
		s.log.Info("sample created", "language", lang, "filename", sample.Filename)
	}

	if created > 0 {
		s.invalidateLanguages()
	}
	return created, nil
}
