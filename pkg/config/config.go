package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PaginationConfig describes how a source expects page requests to be encoded.
type PaginationConfig struct {
	PageParam    string `json:"page_param"`
	LimitParam   string `json:"limit_param"`
	QueryParam   string `json:"query_param"`
	DefaultLimit int    `json:"default_limit"`
}

// ArchiveSource is the source name that serves feeds from the article archive.
const ArchiveSource = "archive"

const newsAPISource = "newsapi"

type SourceConfig struct {
	Name        string           `json:"name"`
	URL         string           `json:"url"`
	Transformer string           `json:"transformer"`
	APIKey      string           `json:"api_key"`
	Pagination  PaginationConfig `json:"pagination"`
}

type Config struct {
	ServerPort       string
	Source           SourceConfig
	SourcesFilePath  string
	PrefetchDistance int
	FetchTimeout     time.Duration

	ArchiveEnabled bool
	MongoURI       string
	MongoDBName    string
	MongoColl      string

	KafkaEnabled          bool
	KafkaBrokers          []string
	KafkaPreferencesTopic string
	KafkaGroupID          string

	TracingEnabled bool
	OTLPEndpoint   string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	brokers := getEnv("KAFKA_BROKERS", "kafka:29092")

	cfg := &Config{
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		SourcesFilePath:       getEnv("SOURCES_FILE_PATH", "config/sources.json"),
		PrefetchDistance:      getIntEnv("PREFETCH_DISTANCE", 3),
		FetchTimeout:          getDurationEnv("FETCH_TIMEOUT", 15*time.Second),
		ArchiveEnabled:        getBoolEnv("ARCHIVE_ENABLED", false),
		MongoURI:              getEnv("MONGO_URI", "mongodb://mongodb:27017"),
		MongoDBName:           getEnv("MONGO_DB_NAME", "newsflash"),
		MongoColl:             getEnv("MONGO_COLLECTION", "articles"),
		KafkaEnabled:          getBoolEnv("KAFKA_ENABLED", false),
		KafkaBrokers:          strings.Split(brokers, ","),
		KafkaPreferencesTopic: getEnv("KAFKA_PREFERENCES_TOPIC", "user_preferences"),
		KafkaGroupID:          getEnv("KAFKA_GROUP_ID", "newsflash-feeds"),
		TracingEnabled:        getBoolEnv("TRACING_ENABLED", false),
		OTLPEndpoint:          getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
	cfg.Source = loadSource(getEnv("NEWS_SOURCE", "newsapi"), cfg.SourcesFilePath)
	return cfg
}

// DefaultSource is the NewsAPI source used when no sources file names the requested one.
func DefaultSource() SourceConfig {
	return SourceConfig{
		Name:        newsAPISource,
		URL:         getEnv("NEWS_API_URL", "https://newsapi.org/v2/everything"),
		Transformer: "newsapi",
		APIKey:      getEnv("NEWS_API_KEY", ""),
		Pagination: PaginationConfig{
			PageParam:    "page",
			LimitParam:   "pageSize",
			QueryParam:   "q",
			DefaultLimit: getIntEnv("NEWS_PAGE_SIZE", 20),
		},
	}
}

// loadSource picks the source called name from the sources file, falling back to the
// NewsAPI defaults.
func loadSource(name, path string) SourceConfig {
	for _, s := range loadSources(path) {
		if s.Name == name {
			if s.APIKey == "" {
				s.APIKey = getEnv("NEWS_API_KEY", "")
			}
			if s.Name == newsAPISource {
				s = s.withNewsAPIEnv()
			}
			return s.withDefaults()
		}
	}
	def := DefaultSource()
	switch name {
	case def.Name:
	case ArchiveSource:
		def.Name = ArchiveSource
	default:
		slog.Warn("Unknown news source, using NewsAPI", "source", name)
	}
	return def
}

// withNewsAPIEnv lets NEWS_API_URL and NEWS_PAGE_SIZE override the sources file.
func (s SourceConfig) withNewsAPIEnv() SourceConfig {
	s.URL = getEnv("NEWS_API_URL", s.URL)
	s.Pagination.DefaultLimit = getIntEnv("NEWS_PAGE_SIZE", s.Pagination.DefaultLimit)
	return s
}

func (s SourceConfig) withDefaults() SourceConfig {
	if s.Pagination.PageParam == "" {
		s.Pagination.PageParam = "page"
	}
	if s.Pagination.DefaultLimit <= 0 {
		s.Pagination.DefaultLimit = 20
	}
	return s
}

func loadSources(path string) []SourceConfig {
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Could not open sources file", "path", path, "error", err)
		}
		return nil
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("Failed to close config file", "error", err)
		}
	}()

	var sources []SourceConfig
	if err := json.NewDecoder(file).Decode(&sources); err != nil {
		slog.Error("Error decoding sources file", "path", path, "error", err)
		return nil
	}
	return sources
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		// Try parsing as duration string (e.g. "1m", "60s")
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Try parsing as integer seconds
		if i, err := strconv.Atoi(value); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
