package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SOURCES_FILE_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("NEWS_API_KEY", "secret")

	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 3, cfg.PrefetchDistance)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.False(t, cfg.ArchiveEnabled)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, "newsapi", cfg.Source.Name)
	assert.Equal(t, "secret", cfg.Source.APIKey)
	assert.Equal(t, "pageSize", cfg.Source.Pagination.LimitParam)
	assert.Equal(t, 20, cfg.Source.Pagination.DefaultLimit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SOURCES_FILE_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("FETCH_TIMEOUT", "30")
	t.Setenv("ARCHIVE_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PREFETCH_DISTANCE", "not-a-number")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.True(t, cfg.ArchiveEnabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3, cfg.PrefetchDistance)
}

func TestLoad_SourceFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name": "mock", "url": "http://localhost:8081/feed", "transformer": "dummy"}
	]`), 0o600))
	t.Setenv("SOURCES_FILE_PATH", path)
	t.Setenv("NEWS_SOURCE", "mock")

	cfg := Load()

	assert.Equal(t, "mock", cfg.Source.Name)
	assert.Equal(t, "dummy", cfg.Source.Transformer)
	assert.Equal(t, "page", cfg.Source.Pagination.PageParam)
	assert.Equal(t, 20, cfg.Source.Pagination.DefaultLimit)
}

func TestLoad_ArchiveSource(t *testing.T) {
	t.Setenv("SOURCES_FILE_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("NEWS_SOURCE", "archive")

	assert.Equal(t, "archive", Load().Source.Name)
}

func TestLoad_NewsAPIEnvOverridesSourcesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name": "newsapi", "url": "https://newsapi.org/v2/everything", "transformer": "newsapi",
		 "pagination": {"page_param": "page", "limit_param": "pageSize", "query_param": "q", "default_limit": 20}}
	]`), 0o600))
	t.Setenv("SOURCES_FILE_PATH", path)
	t.Setenv("NEWS_API_URL", "http://localhost:9999/v2/everything")
	t.Setenv("NEWS_PAGE_SIZE", "5")

	cfg := Load()

	assert.Equal(t, "http://localhost:9999/v2/everything", cfg.Source.URL)
	assert.Equal(t, 5, cfg.Source.Pagination.DefaultLimit)
	assert.Equal(t, "pageSize", cfg.Source.Pagination.LimitParam)
}

func TestLoad_NewsAPIFileValuesWithoutEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name": "newsapi", "url": "https://mirror.example/v2/everything", "transformer": "newsapi",
		 "pagination": {"default_limit": 50}}
	]`), 0o600))
	t.Setenv("SOURCES_FILE_PATH", path)
	for _, key := range []string{"NEWS_API_URL", "NEWS_PAGE_SIZE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg := Load()

	assert.Equal(t, "https://mirror.example/v2/everything", cfg.Source.URL)
	assert.Equal(t, 50, cfg.Source.Pagination.DefaultLimit)
}
