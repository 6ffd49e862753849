package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Index    IndexConfig
	Redis    RedisConfig
	LLM      LLMConfig
	OCR      OCRConfig
	Conflict ConflictConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type IndexConfig struct {
	// AnalysisDir holds the RawCase corpus the conflict evaluator searches;
	// KnowledgeDir holds legislation and reference material for chat RAG.
	AnalysisDir  string
	KnowledgeDir string
	ChunkSize    int
	ChunkOverlap int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	BaseURL        string
	Model          string
	APIKey         string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	EmbeddingModel string
	EmbeddingDim   int
}

type OCRConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	TimeoutSec int
}

type ConflictConfig struct {
	// DefaultThreshold applies when the caller omits one. MinThreshold is the
	// floor below which a check request is rejected outright.
	DefaultThreshold float64
	MinThreshold     float64
	ResultCacheTTL   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bd-law-agent")

	viper.SetEnvPrefix("BD_LAW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 60)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 26214400)

	viper.SetDefault("sqlite.path", "./data/bdlaw.db")

	viper.SetDefault("index.analysisDir", "./data/analysis_index")
	viper.SetDefault("index.knowledgeDir", "./data/knowledge_index")
	viper.SetDefault("index.chunkSize", 1000)
	viper.SetDefault("index.chunkOverlap", 200)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("llm.baseURL", "")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 60)
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.embeddingDim", 1536)

	viper.SetDefault("ocr.baseURL", "https://api.mistral.ai")
	viper.SetDefault("ocr.model", "mistral-ocr-latest")
	viper.SetDefault("ocr.timeoutSec", 120)

	viper.SetDefault("conflict.defaultThreshold", 0.85)
	viper.SetDefault("conflict.minThreshold", 0.65)
	viper.SetDefault("conflict.resultCacheTTL", 3600)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
