package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DataConfig points at the statute text files.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// ChunkerConfig configures how statutes are split into articles.
type ChunkerConfig struct {
	KeepPreamble bool `yaml:"keep_preamble"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// OllamaConfig holds connection details for a local Ollama server.
type OllamaConfig struct {
	ServerURL      string  `yaml:"server_url"`
	EmbeddingModel string  `yaml:"embedding_model"`
	ChatModel      string  `yaml:"chat_model"`
	Temperature    float64 `yaml:"temperature"`
}

// GeminiConfig holds Google Gemini settings.
type GeminiConfig struct {
	APIKeyEnv      string  `yaml:"api_key_env"`
	EmbeddingModel string  `yaml:"embedding_model"`
	ChatModel      string  `yaml:"chat_model"`
	Temperature    float64 `yaml:"temperature"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	Fallback  bool                  `yaml:"fallback"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Ollama    *OllamaConfig         `yaml:"ollama,omitempty"`
	Gemini    *GeminiConfig         `yaml:"gemini,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type       string        `yaml:"type"`
	Dir        string        `yaml:"dir"`
	Collection string        `yaml:"collection"`
	Qdrant     *QdrantConfig `yaml:"qdrant,omitempty"`
}

type RetrievalConfig struct {
	TopK           int  `yaml:"top_k"`
	RejectDegraded bool `yaml:"reject_degraded"`
}

// SynthesizerConfig selects how answers are produced. Backend applies to the
// generative type only.
type SynthesizerConfig struct {
	Type        string `yaml:"type"`
	Backend     string `yaml:"backend"`
	StatuteName string `yaml:"statute_name"`
	ShortName   string `yaml:"short_name"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Data        DataConfig        `yaml:"data"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/lawrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/lawrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lawrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Data:        DataConfig{Dir: "data"},
		Chunker:     ChunkerConfig{KeepPreamble: true},
		Embedder:    EmbedderConfig{Type: "tfidf", Dimension: 384, Fallback: true},
		VectorStore: VectorStoreConfig{Type: "sqlite", Dir: "vector_store", Collection: "legal_documents"},
		Retrieval:   RetrievalConfig{TopK: 3},
		Synthesizer: SynthesizerConfig{Type: "extractive"},
		Server:      ServerConfig{Addr: ":8000"},
		Log:         LogConfig{Level: "info", Pretty: true},
	}
}

// applyEnv reads LAWRAG_* overrides.
func applyEnv(cfg *AppConfig) error {
	str := map[string]*string{
		"LAWRAG_DATA_DIR":    &cfg.Data.Dir,
		"LAWRAG_STORE_DIR":   &cfg.VectorStore.Dir,
		"LAWRAG_STORE_TYPE":  &cfg.VectorStore.Type,
		"LAWRAG_EMBEDDER":    &cfg.Embedder.Type,
		"LAWRAG_SYNTHESIZER": &cfg.Synthesizer.Type,
		"LAWRAG_LOG_LEVEL":   &cfg.Log.Level,
		"LAWRAG_SERVER_ADDR": &cfg.Server.Addr,
		"LAWRAG_LLM_BACKEND": &cfg.Synthesizer.Backend,
		"LAWRAG_COLLECTION":  &cfg.VectorStore.Collection,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("LAWRAG_TOP_K"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LAWRAG_TOP_K: %w", err)
		}
		cfg.Retrieval.TopK = n
	}
	if v, ok := os.LookupEnv("LAWRAG_REJECT_DEGRADED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LAWRAG_REJECT_DEGRADED: %w", err)
		}
		cfg.Retrieval.RejectDegraded = b
	}
	return nil
}

func applyConfigDefaults(cfg *AppConfig) {
	cfg.Embedder.Type = strings.ToLower(cfg.Embedder.Type)
	if cfg.Embedder.Dimension <= 0 {
		cfg.Embedder.Dimension = 384
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "legal_documents"
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Synthesizer.Type == "" {
		cfg.Synthesizer.Type = "extractive"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.Embedder.Type == "ollama" || cfg.Synthesizer.Backend == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaConfig{}
		}
		if cfg.Embedder.Ollama.ServerURL == "" {
			cfg.Embedder.Ollama.ServerURL = "http://localhost:11434"
		}
		if cfg.Embedder.Ollama.EmbeddingModel == "" {
			cfg.Embedder.Ollama.EmbeddingModel = "nomic-embed-text"
		}
		if cfg.Embedder.Ollama.ChatModel == "" {
			cfg.Embedder.Ollama.ChatModel = "qwen2.5:1.5b"
		}
		if cfg.Embedder.Ollama.Temperature == 0 {
			cfg.Embedder.Ollama.Temperature = 0.1
		}
	}
	if cfg.Embedder.Type == "gemini" || cfg.Synthesizer.Backend == "gemini" {
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiConfig{}
		}
		if cfg.Embedder.Gemini.APIKeyEnv == "" {
			cfg.Embedder.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.Embedder.Gemini.EmbeddingModel == "" {
			cfg.Embedder.Gemini.EmbeddingModel = "text-embedding-004"
		}
		if cfg.Embedder.Gemini.ChatModel == "" {
			cfg.Embedder.Gemini.ChatModel = "gemini-1.5-flash"
		}
		if cfg.Embedder.Gemini.Temperature == 0 {
			cfg.Embedder.Gemini.Temperature = 0.1
		}
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
}
