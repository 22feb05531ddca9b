package service

import (
	"context"
	"testing"

	apperrors "audio-library/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedSkipsExistingLanguages(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, "en", mp3Upload("abc"))
	require.NoError(t, err)

	created, err := f.svc.Seed(ctx, DefaultSamples)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	ar, err := f.svc.GetByLanguage(ctx, "ar")
	require.NoError(t, err)
	assert.Equal(t, "sample_arabic.mp3", ar.Filename)
	require.NotNil(t, ar.Duration)
	assert.Equal(t, 35.2, *ar.Duration)
	assert.Equal(t, "http://localhost:8000/api/audio/files/sample_arabic.mp3", ar.URL)

	created, err = f.svc.Seed(ctx, DefaultSamples)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestSeedRejectsUnknownLanguage(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Seed(context.Background(), []SampleAsset{{Language: "xx", Filename: "x.mp3", Format: "mp3"}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
