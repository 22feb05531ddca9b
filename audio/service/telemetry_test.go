package service

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAndDeleteAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	f := newFixture(t, nil)
	ctx := context.Background()

	asset, err := f.svc.Upload(ctx, "en", mp3Upload("abc"))
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, "xx", mp3Upload("abc"))
	require.Error(t, err)
	_, err = f.svc.Delete(ctx, asset.ID)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, "AudioService.Upload", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("audio.language_input", "en"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	// client errors are annotated, not marked failed
	assert.Contains(t, spans[1].Attributes(), attribute.Int("http.status_code", 400))
	assert.Equal(t, codes.Unset, spans[1].Status().Code)

	assert.Equal(t, "AudioService.Delete", spans[2].Name())
	assert.Contains(t, spans[2].Attributes(), attribute.String("audio.id", asset.ID))
}
