package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// LLM provider names accepted by LLMProvider.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// LLM backend selection. Groq speaks the OpenAI wire protocol, so both
	// share the chat client and differ only in base URL and key.
	LLMProvider string `envconfig:"LLM_PROVIDER" default:"groq"`

	GroqAPIKey string `envconfig:"GROQ_API_KEY"`
	GroqModel  string `envconfig:"GROQ_MODEL" default:"llama3-70b-8192"`

	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIChatModel string `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4o-mini"`

	OllamaBaseURL string `envconfig:"OLLAMA_BASE_URL"`
	OllamaModel   string `envconfig:"OLLAMA_MODEL"`

	// Embeddings always go through the OpenAI embeddings API.
	EmbeddingAPIKey string `envconfig:"EMBEDDING_API_KEY"`

	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"120s"`
	RetrievalTimeout  time.Duration `envconfig:"RETRIEVAL_TIMEOUT" default:"15s"`
	RetrievalLimit    int           `envconfig:"RETRIEVAL_LIMIT" default:"2"`
	WorkerPoll        time.Duration `envconfig:"WORKER_POLL" default:"2s"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"soapify-recordings"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("SOAPIFY", &cfg); err != nil {
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

// ValidateLLM checks that the selected provider is fully configured. Only
// the serve path needs a working LLM backend; admin commands load config
// without it.
func (c *Config) ValidateLLM() error {
	switch c.LLMProvider {
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("SOAPIFY_GROQ_API_KEY is required when LLM_PROVIDER=groq")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("SOAPIFY_OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case ProviderOllama:
		if c.OllamaBaseURL == "" || c.OllamaModel == "" {
			return fmt.Errorf("SOAPIFY_OLLAMA_BASE_URL and SOAPIFY_OLLAMA_MODEL are required when LLM_PROVIDER=ollama")
		}
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLMProvider)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasEmbeddings() bool {
	return c.EmbeddingAPIKey != "" || c.OpenAIAPIKey != ""
}

// EmbeddingKey returns the key for the embeddings API, falling back to the
// OpenAI chat key when a dedicated one is not set.
func (c *Config) EmbeddingKey() string {
	if c.EmbeddingAPIKey != "" {
		return c.EmbeddingAPIKey
	}
	return c.OpenAIAPIKey
}
