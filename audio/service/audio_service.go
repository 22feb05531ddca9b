package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"audio-library/backend/audio/models"
	"audio-library/backend/audio/repository"
	"audio-library/backend/audio/storage"
	"audio-library/backend/pkg/cache"
	apperrors "audio-library/backend/pkg/errors"
	"audio-library/backend/pkg/logger"
	"audio-library/backend/pkg/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const languagesCacheKey = "audio:languages"

// DefaultStoreTimeout bounds every repository call
const DefaultStoreTimeout = 5 * time.Second

// Options carries the optional collaborators of AudioService
type Options struct {
	// BaseURL prefixes generated asset URLs, without a trailing slash
	BaseURL string
	// Timeout bounds each store call. Zero uses DefaultStoreTimeout.
	Timeout time.Duration
	// Cache holds the language summary. Nil disables caching.
	Cache  *cache.Cache
	Logger *logger.Logger
}

// UploadInput describes one incoming file. Size is -1 when the client did
// not declare it.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	// LateLanguage, when set, is called after Body is consumed and returns
	// the language input to use instead of the one passed to Upload.
	LateLanguage func() (string, error)
}

// AudioService orchestrates validation, file persistence and the asset store
type AudioService struct {
	repo      repository.AudioRepository
	files     *storage.FileStore
	validator *Validator
	cache     *cache.Cache
	log       *logger.Logger
	baseURL   string
	timeout   time.Duration

	// cacheMu orders summary writes against invalidations; cacheGen counts
	// invalidations so a read that overlapped one is not cached
	cacheMu  sync.Mutex
	cacheGen uint64
}

func NewAudioService(repo repository.AudioRepository, files *storage.FileStore, validator *Validator, opts Options) *AudioService {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultStoreTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetGlobal()
	}
	return &AudioService{
		repo:      repo,
		files:     files,
		validator: validator,
		cache:     opts.Cache,
		log:       opts.Logger.WithComponent("audio_service"),
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		timeout:   opts.Timeout,
	}
}

// Upload validates and stores a new audio file and its record
func (s *AudioService) Upload(ctx context.Context, languageInput string, in UploadInput) (*models.AudioAsset, error) {
	ctx, span := startSpan(ctx, "AudioService.Upload", attribute.String("audio.language_input", languageInput))
	start := time.Now()
	asset, err := s.upload(ctx, languageInput, in)
	recordDuration(ctx, "upload", start, err)
	endSpan(span, err)
	return asset, err
}

func (s *AudioService) upload(ctx context.Context, languageInput string, in UploadInput) (*models.AudioAsset, error) {
	if ok, reason := s.validator.Validate(FileInfo{Filename: in.Filename, ContentType: in.ContentType, Size: in.Size}); !ok {
		metrics.AssetOperations.WithLabelValues("upload", "invalid").Inc()
		return nil, apperrors.NewValidationError(reason)
	}

	if in.LateLanguage == nil {
		if err := checkLanguage(languageInput); err != nil {
			return nil, err
		}
	}

	format := Extension(in.Filename)
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	staged := fmt.Sprintf(".upload_%s.%s", id, format)

	if _, _, err := s.files.Save(ctx, in.Body, staged, s.validator.MaxSize()); err != nil {
		metrics.AssetOperations.WithLabelValues("upload", "error").Inc()
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, apperrors.NewValidationError(ReasonTooLarge)
		}
		return nil, apperrors.NewStorageError("failed to store audio file", err)
	}

	if in.LateLanguage != nil {
		late, err := in.LateLanguage()
		if err == nil {
			languageInput = late
			err = checkLanguage(languageInput)
		}
		if err != nil {
			s.removeFile(staged)
			return nil, err
		}
	}

	lang := NormalizeLanguage(languageInput)
	filename := fmt.Sprintf("%s_%s.%s", lang, id, format)
	if err := s.files.Rename(staged, filename); err != nil {
		s.removeFile(staged)
		metrics.AssetOperations.WithLabelValues("upload", "error").Inc()
		return nil, apperrors.NewStorageError("failed to store audio file", err)
	}

	size, err := s.files.Size(filename)
	if err != nil {
		s.removeFile(filename)
		metrics.AssetOperations.WithLabelValues("upload", "error").Inc()
		return nil, apperrors.NewStorageError("failed to store audio file", err)
	}

	asset := &models.AudioAsset{
		Language: lang,
		Filename: filename,
		URL:      s.FileURL(filename),
		FileSize: size,
		Format:   format,
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.repo.Create(storeCtx, asset); err != nil {
		s.removeFile(filename)
		metrics.AssetOperations.WithLabelValues("upload", "error").Inc()
		return nil, apperrors.NewStorageError("failed to save audio record", err)
	}

	s.invalidateLanguages()
	metrics.AssetOperations.WithLabelValues("upload", "ok").Inc()
	metrics.UploadedBytes.Observe(float64(size))
	s.log.Info("audio file uploaded",
		"id", asset.ID,
		"language", lang,
		"filename", filename,
		"size", FormatFileSize(size),
	)
	return asset, nil
}

// GetByLanguage returns the most recently created asset for a language
func (s *AudioService) GetByLanguage(ctx context.Context, languageInput string) (*models.AudioAsset, error) {
	lang := NormalizeLanguage(languageInput)

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	asset, err := s.repo.FindByLanguage(storeCtx, lang)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("audio file not found").
				WithDetail(fmt.Sprintf("no audio file for language %q", lang))
		}
		return nil, apperrors.NewStorageError("failed to query audio files", err)
	}
	return asset, nil
}

func (s *AudioService) GetByID(ctx context.Context, id string) (*models.AudioAsset, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	asset, err := s.repo.FindByID(storeCtx, id)
	if err != nil {
		return nil, mapStoreError(err, "failed to query audio files")
	}
	return asset, nil
}

// ListLanguages returns per-language counts sorted by language code
func (s *AudioService) ListLanguages(ctx context.Context) ([]models.LanguageSummary, error) {
	var gen uint64
	if s.cache != nil {
		if cached, ok := s.cache.Get(languagesCacheKey); ok {
			if summaries, ok := cached.([]models.LanguageSummary); ok {
				return append([]models.LanguageSummary(nil), summaries...), nil
			}
		}
		s.cacheMu.Lock()
		gen = s.cacheGen
		s.cacheMu.Unlock()
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	rows, err := s.repo.CountByLanguage(storeCtx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to aggregate languages", err)
	}

	summaries := make([]models.LanguageSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, models.LanguageSummary{
			Language:     row.Language,
			LanguageName: LanguageName(row.Language),
			Count:        row.Count,
		})
	}

	if s.cache != nil {
		s.cacheMu.Lock()
		if s.cacheGen == gen {
			s.cache.Set(languagesCacheKey, append([]models.LanguageSummary(nil), summaries...))
		}
		s.cacheMu.Unlock()
	}
	return summaries, nil
}

// ListAll returns every asset. There is no pagination.
func (s *AudioService) ListAll(ctx context.Context) ([]models.AudioAsset, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	assets, err := s.repo.List(storeCtx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list audio files", err)
	}
	if assets == nil {
		assets = []models.AudioAsset{}
	}
	return assets, nil
}

// Update applies the fields present in patch and always refreshes updated_at
func (s *AudioService) Update(ctx context.Context, id string, patch models.AssetPatch) (*models.AudioAsset, error) {
	if patch.Language != nil {
		lang := NormalizeLanguage(*patch.Language)
		if !IsKnownLanguage(lang) {
			return nil, apperrors.NewValidationError(ReasonLanguage).WithDetail(fmt.Sprintf("language %q", *patch.Language))
		}
		patch.Language = &lang
	}
	if patch.Format != nil {
		format := strings.ToLower(strings.TrimSpace(*patch.Format))
		if !s.validator.FormatAllowed(format) {
			return nil, apperrors.NewValidationError(ReasonFormat)
		}
		patch.Format = &format
	}
	if patch.FileSize != nil && *patch.FileSize < 0 {
		return nil, apperrors.NewValidationError(ReasonNegativeValue).WithDetail("file_size")
	}
	if patch.Duration != nil && *patch.Duration < 0 {
		return nil, apperrors.NewValidationError(ReasonNegativeValue).WithDetail("duration")
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	asset, err := s.repo.Update(storeCtx, id, patch)
	if err != nil {
		metrics.AssetOperations.WithLabelValues("update", "error").Inc()
		return nil, mapStoreError(err, "failed to update audio record")
	}

	s.invalidateLanguages()
	metrics.AssetOperations.WithLabelValues("update", "ok").Inc()
	return asset, nil
}

// Delete removes the record and then its physical file. It returns true once
// exactly one record is removed; a failed file removal after that is logged
// and does not change the result.
func (s *AudioService) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := startSpan(ctx, "AudioService.Delete", attribute.String("audio.id", id))
	start := time.Now()
	deleted, err := s.deleteAsset(ctx, id)
	recordDuration(ctx, "delete", start, err)
	endSpan(span, err)
	return deleted, err
}

func (s *AudioService) deleteAsset(ctx context.Context, id string) (bool, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	asset, err := s.repo.FindByID(storeCtx, id)
	if err != nil {
		return false, mapStoreError(err, "failed to query audio files")
	}

	deleted, err := s.repo.Delete(storeCtx, id)
	if err != nil {
		metrics.AssetOperations.WithLabelValues("delete", "error").Inc()
		return false, mapStoreError(err, "failed to delete audio record")
	}
	if deleted != 1 {
		return false, apperrors.NewNotFoundError("audio file not found")
	}
	s.invalidateLanguages()

	removed, err := s.files.Remove(asset.Filename)
	switch {
	case err != nil:
		metrics.AssetOperations.WithLabelValues("delete", "file_error").Inc()
		s.log.LogError(err, "audio record deleted but file removal failed",
			"id", asset.ID,
			"filename", asset.Filename,
		)
	case !removed:
		s.log.Warn("audio record deleted, file was already missing",
			"id", asset.ID,
			"filename", asset.Filename,
		)
	}

	metrics.AssetOperations.WithLabelValues("delete", "ok").Inc()
	s.log.Info("audio file deleted", "id", asset.ID, "filename", asset.Filename)
	return true, nil
}

// OpenFile resolves a stored file for streaming. The caller closes it.
func (s *AudioService) OpenFile(ctx context.Context, filename string) (*os.File, os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, apperrors.NewStorageError("request cancelled", err)
	}
	f, info, err := s.files.Open(filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) || errors.Is(err, storage.ErrInvalidName) {
			return nil, nil, apperrors.NewNotFoundError("audio file not found")
		}
		return nil, nil, apperrors.NewStorageError("failed to open audio file", err)
	}
	return f, info, nil
}

// FileURL builds the public address of a stored file
func (s *AudioService) FileURL(filename string) string {
	return s.baseURL + "/api/audio/files/" + url.PathEscape(filename)
}

// ContentType maps a stored format to its MIME type
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "m4a":
		return "audio/mp4"
	case "ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

func (s *AudioService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *AudioService) invalidateLanguages() {
	if s.cache != nil {
		s.cacheMu.Lock()
		s.cacheGen++
		s.cache.Delete(languagesCacheKey)
		s.cacheMu.Unlock()
	}
}

func (s *AudioService) removeFile(filename string) {
	if _, err := s.files.Remove(filename); err != nil {
		s.log.LogError(err, "failed to clean up stored file", "filename", filename)
	}
}

func checkLanguage(input string) error {
	if !IsKnownLanguage(NormalizeLanguage(input)) {
		metrics.AssetOperations.WithLabelValues("upload", "invalid").Inc()
		return apperrors.NewValidationError(ReasonLanguage).WithDetail(fmt.Sprintf("language %q", input))
	}
	return nil
}

func mapStoreError(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrInvalidID):
		return apperrors.NewInvalidIDError("invalid audio file id")
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFoundError("audio file not found")
	default:
		return apperrors.NewStorageError(msg, err)
	}
}
