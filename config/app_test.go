package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ncfrec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Model.EmbeddingDim)
	assert.Equal(t, []int{128, 64, 32, 1}, cfg.Model.Layers)
	assert.Equal(t, BackendFile, cfg.Artifact.Backend)
	assert.Equal(t, MetadataRequest, cfg.Data.Metadata)
	assert.Equal(t, DataCSV, cfg.Data.Backend)
	assert.Equal(t, 0.0, cfg.Engine.MinRating)
	assert.Equal(t, 5.0, cfg.Engine.MaxRating)
	assert.Equal(t, 30, cfg.Train.Epochs)
	assert.Equal(t, 64, cfg.Train.BatchSize)
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: console
artifact:
  backend: badger
engine:
  max_top_n: 20
  concurrency: 4
server:
  request_timeout: 750ms
train:
  epochs: 3
`)
	t.Setenv("NCFREC_ENGINE_MAX_TOP_N", "50")
	t.Setenv("NCFREC_TRAIN_BATCH_SIZE", "16")
	t.Setenv("NCFREC_MODEL_LAYERS", "16,8,1")
	t.Setenv("NCFREC_UNKNOWN_THING", "ignored")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, BackendBadger, cfg.Artifact.Backend)
	assert.Equal(t, 50, cfg.Engine.MaxTopN)
	assert.Equal(t, 4, cfg.Engine.Concurrency)
	assert.Equal(t, 750*time.Millisecond, cfg.Server.RequestTimeout)
	assert.Equal(t, 3, cfg.Train.Epochs)
	assert.Equal(t, 16, cfg.Train.BatchSize)
	assert.Equal(t, []int{16, 8, 1}, cfg.Model.Layers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad backend", "artifact:\n  backend: s3\n"},
		{"bad metadata", "data:\n  metadata: dynamo\n"},
		{"rating bounds", "engine:\n  min_rating: 5\n  max_rating: 1\n"},
		{"top n above max", "engine:\n  default_top_n: 10\n  max_top_n: 5\n"},
		{"last layer", "model:\n  layers: [8, 4]\n"},
		{"empty file path", "artifact:\n  path: \"\"\n"},
		{"store data on file backend", "data:\n  backend: store\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"zero epochs", "train:\n  epochs: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"NCFREC_ENGINE_MAX_TOP_N":   "engine.max_top_n",
		"NCFREC_REDIS_ADDR":         "redis.addr",
		"NCFREC_FEAST_INT64_ENTITY": "feast.int64_entity",
		"REDIS_ADDR":                "redis.addr",
		"NCFREC_CONFIG":             "",
		"NCFREC_BOGUS_KEY":          "",
		"NCFREC_ENGINE":             "",
		"HOME":                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, envTransformFunc(in), in)
	}
}
