package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"audio-library/backend/audio/models"
	"audio-library/backend/audio/service"
	apperrors "audio-library/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

const defaultLanguage = "en"

type AudioHandler struct {
	service        *service.AudioService
	maxRequestSize int64
}

func NewAudioHandler(service *service.AudioService, maxRequestSize int64) *AudioHandler {
	return &AudioHandler{service: service, maxRequestSize: maxRequestSize}
}

func (h *AudioHandler) ListLanguages(c *gin.Context) {
	languages, err := h.service.ListLanguages(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, languages)
}

func (h *AudioHandler) GetByLanguage(c *gin.Context) {
	asset, err := h.service.GetByLanguage(c.Request.Context(), c.Param("language"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (h *AudioHandler) ListAll(c *gin.Context) {
	assets, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

// Upload streams the multipart "file" part into storage. The language comes
// from the query string, else from a "language" field sent before or after
// the file part, else defaults to en.
func (h *AudioHandler) Upload(c *gin.Context) {
	if h.maxRequestSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestSize)
	}

	reader, err := c.Request.MultipartReader()
	if err != nil {
		c.Error(apperrors.NewBadRequestError("multipart form data required"))
		return
	}

	language := strings.TrimSpace(c.Query("language"))
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.Error(uploadError(err, apperrors.NewBadRequestError("malformed multipart body")))
			return
		}

		switch part.FormName() {
		case "language":
			value, err := readLanguagePart(part)
			if err != nil {
				c.Error(err)
				return
			}
			if language == "" {
				language = value
			}
		case "file":
			in := service.UploadInput{
				Filename:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Size:        -1,
				Body:        part,
			}
			if language == "" {
				in.LateLanguage = func() (string, error) {
					return trailingLanguage(reader)
				}
			}
			asset, err := h.service.Upload(c.Request.Context(), language, in)
			part.Close()
			if err != nil {
				c.Error(uploadError(err, err))
				return
			}
			c.JSON(http.StatusOK, models.UploadResponse{
				Message:   "Audio file uploaded successfully",
				AudioFile: asset,
			})
			return
		default:
			part.Close()
		}
	}

	c.Error(apperrors.NewValidationError(service.ReasonNoFilename).WithDetail("missing file part"))
}

// trailingLanguage reads the parts after the file and returns the first
// "language" value, or the default when none follows.
func trailingLanguage(reader *multipart.Reader) (string, error) {
	language := ""
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", uploadError(err, apperrors.NewBadRequestError("malformed multipart body"))
		}
		if part.FormName() == "language" && language == "" {
			if language, err = readLanguagePart(part); err != nil {
				return "", err
			}
			continue
		}
		part.Close()
	}
	if language == "" {
		language = defaultLanguage
	}
	return language, nil
}

func readLanguagePart(part *multipart.Part) (string, error) {
	defer part.Close()
	value, err := io.ReadAll(io.LimitReader(part, 64))
	if err != nil {
		return "", uploadError(err, apperrors.NewBadRequestError("malformed multipart body"))
	}
	return strings.TrimSpace(string(value)), nil
}

// ServeFile streams a stored file with range support
func (h *AudioHandler) ServeFile(c *gin.Context) {
	filename := c.Param("filename")
	f, info, err := h.service.OpenFile(c.Request.Context(), filename)
	if err != nil {
		c.Error(err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", service.ContentType(service.Extension(filename)))
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

func (h *AudioHandler) Update(c *gin.Context) {
	var patch models.AssetPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.Error(apperrors.NewBadRequestError("invalid request body").WithDetail(err.Error()))
		return
	}

	asset, err := h.service.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (h *AudioHandler) Delete(c *gin.Context) {
	if _, err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Audio file deleted successfully"})
}

// uploadError maps an oversized body to a validation error and returns
// fallback for anything else
func uploadError(err error, fallback error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.NewValidationError(service.ReasonTooLarge)
	}
	return fallback
}
