package common

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("TESSERACT_LANG", "")
	t.Setenv("WATCH_DIRS", " ./inbox, ,./scans ")
	t.Setenv("QUEUE_WORKERS", "4")
	t.Setenv("OPENAI_API_KEY", "")

	cfg := LoadConfig()
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "kor+eng", cfg.OCR.Language)
	assert.Equal(t, []string{"./inbox", "./scans"}, cfg.Watch.Dirs)
	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.False(t, cfg.LLM.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	cfg := LoadConfig()
	cfg.Database.Driver = "mysql"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(WrapError(ErrNotFound, "job")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(NewAppError("BAD", "x", ErrValidation)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
	assert.Equal(t, "BAD", ErrorCode(NewAppError("BAD", "x", ErrValidation)))
	assert.Equal(t, "NOT_FOUND", ErrorCode(ErrNotFound))
	assert.Nil(t, WrapError(nil, "noop"))
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("id", "not-a-uuid", Required, UUID).
		Field("limit", 500, IntRange(1, 200)).
		Field("format", "xlsx", OneOf("json", "XLSX"))
	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 2)
	assert.ErrorIs(t, v.Err(), ErrValidation)

	assert.NoError(t, NewValidator().Field("id", "9b2b6c1e-3f5a-4c8e-9a51-0d7e8e0b6f11", Required, UUID).Err())
}

func TestContextHelpers(t *testing.T) {
	ctx := WithJobID(WithRequestID(context.Background(), "req-1"), "job-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "job-1", JobIDFromContext(ctx))

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Same(t, l, LoggerFromContext(WithLogger(ctx, l), nil))
	assert.Same(t, slog.Default(), LoggerFromContext(ctx, nil))
}
