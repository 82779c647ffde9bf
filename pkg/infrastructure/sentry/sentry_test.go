package sentry

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitWithoutDSNIsDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.NoError(t, Init(Config{}, logger))
}

func TestReporterWithoutClientDoesNotPanic(t *testing.T) {
	report := Reporter(nil)
	assert.NotPanics(t, func() {
		report(errors.New("activity write failed"), map[string]interface{}{"op": "append activity", "attempt": 2})
	})
}
