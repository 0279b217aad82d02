package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.True(t, cfg.Embedder.Fallback)
	assert.True(t, cfg.Chunker.KeepPreamble)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	assert.Equal(t, "legal_documents", cfg.VectorStore.Collection)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "extractive", cfg.Synthesizer.Type)
}

func TestLoad_YAMLOverridesKeepUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  type: OpenAI
  openai:
    model: text-embedding-3-large
chunker:
  keep_preamble: false
retrieval:
  top_k: 5
  reject_degraded: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Embedder.Type)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, 32, cfg.Embedder.OpenAI.BatchSize)
	assert.False(t, cfg.Chunker.KeepPreamble)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.True(t, cfg.Retrieval.RejectDegraded)
	assert.Equal(t, "vector_store", cfg.VectorStore.Dir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LAWRAG_DATA_DIR", "/srv/statutes")
	t.Setenv("LAWRAG_STORE_TYPE", "qdrant")
	t.Setenv("LAWRAG_TOP_K", "7")
	t.Setenv("LAWRAG_LLM_BACKEND", "gemini")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/statutes", cfg.Data.Dir)
	assert.Equal(t, "qdrant", cfg.VectorStore.Type)
	assert.Equal(t, "http://localhost:6333", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	require.NotNil(t, cfg.Embedder.Gemini)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Embedder.Gemini.APIKeyEnv)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("LAWRAG_TOP_K", "many")
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder: [unclosed"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestSave_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	cfg := defaultConfig()
	cfg.Server.Addr = ":9000"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", loaded.Server.Addr)
}
