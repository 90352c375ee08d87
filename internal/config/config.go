package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	CohereAPIKey      string `envconfig:"COHERE_API_KEY"`
	CohereRerankModel string `envconfig:"COHERE_RERANK_MODEL" default:"rerank-multilingual-v3.0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"maplepath-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Embedding backfill worker
	WorkerEnabled     bool `envconfig:"WORKER_ENABLED" default:"true"`
	WorkerPollSeconds int  `envconfig:"WORKER_POLL_SECONDS" default:"30"`
	WorkerBatchSize   int  `envconfig:"WORKER_BATCH_SIZE" default:"16"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MAPLEPATH", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// HasCohere reports whether reranking is configured. The retrieval
// service reads this once at construction time, never per request.
func (c *Config) HasCohere() bool {
	return c.CohereAPIKey != ""
}
