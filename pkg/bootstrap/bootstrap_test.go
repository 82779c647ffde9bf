package bootstrap

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"GOOGLE_CLOUD_PROJECT", "ENABLE_PUBLISH", "DOCUMENT_BUCKET", "NOTIFICATION_TOPIC", "STORE", "MAX_UPLOAD_BYTES", "PORT"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()

	assert.Equal(t, "agentflow-onboarding", cfg.ProjectID)
	assert.False(t, cfg.EnablePublish)
	assert.Equal(t, "topic-onboarding-notifications", cfg.NotificationTopic)
	assert.Equal(t, StoreFirestore, cfg.Store)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "prod-project")
	t.Setenv("ENABLE_PUBLISH", "true")
	t.Setenv("STORE", "Memory")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	t.Setenv("DOCUMENT_BUCKET", "agent-docs")

	cfg := LoadConfig()
	assert.Equal(t, "prod-project", cfg.ProjectID)
	assert.True(t, cfg.EnablePublish)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
	assert.Equal(t, "agent-docs", cfg.DocumentBucket)

	t.Setenv("MAX_UPLOAD_BYTES", "-5")
	assert.Equal(t, int64(10<<20), LoadConfig().MaxUploadBytes)
}

func TestComponentHandlerPrefixesMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&ComponentHandler{Handler: slog.NewJSONHandler(&buf, GetSlogHandlerOptions(slog.LevelInfo))})

	logger.With("component", "onboarding").Info("Step completed", "agent_id", "agent-x")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "[onboarding] Step completed", line["message"])
	assert.Equal(t, "INFO", line["severity"])
	assert.Equal(t, "onboarding", line["component"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
