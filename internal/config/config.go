package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

// DefaultModel is used when FACE_MODEL is not set.
const DefaultModel = "buffalo_l"

type Config struct {
	Store     StoreConfig
	Database  DatabaseConfig
	SQLite    SQLiteConfig
	Embedding EmbeddingConfig
	Match     MatchConfig
	Web       WebConfig
	Log       LogConfig
	Models    ModelsConfig
}

type StoreConfig struct {
	Backend       string // postgres | sqlite | memory (default postgres when DATABASE_URL is set, sqlite otherwise)
	UploadDir     string // directory for reference photos (default ./uploads)
	HNSWIndexPath string // path to persist the approximate index (optional, rebuilt on demand if empty)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type SQLiteConfig struct {
	Path string // defaults to missing_persons.db
}

type EmbeddingConfig struct {
	URL   string // face embedding server; empty selects the local histogram encoder
	Model string // key into the model catalogue (default buffalo_l)
	Dim   int    // overrides the catalogue dimension when > 0
}

type MatchConfig struct {
	Metric    string  // euclidean | cosine; empty uses the model default
	Threshold float64 // > 0 overrides the model default
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins; localhost is always allowed
}

type LogConfig struct {
	Env   string // prod | local | dev | docker
	Level string // debug | info | warn | error
}

type ModelsConfig struct {
	Models map[string]ModelSpec `yaml:"models"`
}

// ModelSpec describes how embeddings of one model are compared.
type ModelSpec struct {
	Dim       int     `yaml:"dim"`
	Metric    string  `yaml:"metric"`
	Threshold float64 `yaml:"threshold"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, dropping blank entries.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(modelsYAML, &models); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	databaseURL := os.Getenv("DATABASE_URL")
	backend := os.Getenv("STORE_BACKEND")
	if backend == "" {
		backend = "sqlite"
		if databaseURL != "" {
			backend = "postgres"
		}
	}

	return &Config{
		Store: StoreConfig{
			Backend:       backend,
			UploadDir:     envString("UPLOAD_DIR", "uploads"),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Database: DatabaseConfig{
			URL:          databaseURL,
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		SQLite: SQLiteConfig{
			Path: envString("SQLITE_PATH", "missing_persons.db"),
		},
		Embedding: EmbeddingConfig{
			URL:   os.Getenv("EMBEDDING_URL"),
			Model: envString("FACE_MODEL", DefaultModel),
			Dim:   envInt("EMBEDDING_DIM", 0),
		},
		Match: MatchConfig{
			Metric:    os.Getenv("MATCH_METRIC"),
			Threshold: envFloat("MATCH_THRESHOLD", 0),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "127.0.0.1"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Env:   envString("LOG_ENV", "local"),
			Level: os.Getenv("LOG_LEVEL"),
		},
		Models: models,
	}
}

// GetModelSpec returns the catalogue entry for a model. Unknown models fall back to
// cosine distance with a 0.6 threshold and no fixed dimension.
func (c *Config) GetModelSpec(model string) ModelSpec {
	if spec, ok := c.Models.Models[model]; ok {
		return spec
	}
	return ModelSpec{Metric: "cosine", Threshold: 0.6}
}

// HistogramModel is the model id of the local encoder used when EMBEDDING_URL is unset.
const HistogramModel = "histogram"

// ResolvedModel returns the id of the model that will actually produce embeddings.
func (c *Config) ResolvedModel() string {
	if c.Embedding.URL == "" {
		return HistogramModel
	}
	return c.Embedding.Model
}

// ActiveModel resolves the spec of the embedding model in use with the
// EMBEDDING_DIM, MATCH_METRIC and MATCH_THRESHOLD overrides applied.
func (c *Config) ActiveModel() ModelSpec {
	spec := c.GetModelSpec(c.ResolvedModel())
	if c.Embedding.Dim > 0 {
		spec.Dim = c.Embedding.Dim
	}
	if c.Match.Metric != "" {
		spec.Metric = c.Match.Metric
	}
	if c.Match.Threshold > 0 {
		spec.Threshold = c.Match.Threshold
	}
	return spec
}
