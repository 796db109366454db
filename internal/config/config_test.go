package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draylor/repolens/pkg/types"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv(EnvGitHubToken, "ghp_test")
	t.Setenv(EnvGeminiAPIKey, "test-key")
	t.Setenv(EnvRepo, "acme/payments")
}

func TestLoad_DefaultsWithEnv(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "acme/payments", cfg.Repo.Name)
	assert.Equal(t, "ghp_test", cfg.Repo.Token)
	assert.Equal(t, ".py", cfg.Repo.FileExtension)
	assert.Equal(t, 768, cfg.Embeddings.Dimensions)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, 20*time.Second, cfg.Search.SourceTimeout)
}

func TestLoad_YAMLFile(t *testing.T) {
	setRequiredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "repolens.yaml")
	content := `
search:
  max_results: 3
  vector_top_k: 10
indexing:
  workers: 8
storage:
  db_path: /tmp/test.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Search.MaxResults)
	assert.Equal(t, 10, cfg.Search.VectorTopK)
	assert.Equal(t, 8, cfg.Indexing.Workers)
	assert.Equal(t, "/tmp/test.db", cfg.Storage.DBPath)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Indexing.Workers)
}

func TestValidate_MissingToken(t *testing.T) {
	cfg := Default()
	cfg.Repo.Name = "acme/payments"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestValidate_MaxResultsRange(t *testing.T) {
	setRequiredEnv(t)

	for _, n := range []int{2, 7, 0, -1} {
		t.Setenv(EnvMaxResults, "")
		cfg := Default()
		cfg.applyEnv()
		cfg.Search.MaxResults = n
		err := cfg.Validate()
		assert.ErrorIs(t, err, types.ErrConfiguration, "max_results=%d", n)
	}

	for _, n := range []int{3, 4, 5, 6} {
		cfg := Default()
		cfg.applyEnv()
		cfg.Search.MaxResults = n
		assert.NoError(t, cfg.Validate(), "max_results=%d", n)
	}
}

func TestNormalizeRepoName(t *testing.T) {
	assert.Equal(t, "acme/payments", NormalizeRepoName("https://github.com/acme/payments/"))
	assert.Equal(t, "acme/payments", NormalizeRepoName("acme/payments"))
}

func TestLoad_InvalidYAML(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: ["), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
