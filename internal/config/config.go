package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration.
type Config struct {
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Embeddings    Embeddings    `mapstructure:"embeddings"`
	Storage       Storage       `mapstructure:"storage"`
	Chunker       Chunker       `mapstructure:"chunker"`
	Prompt        Prompt        `mapstructure:"prompt"`
	LLM           LLM           `mapstructure:"llm"`
	Inspector     Inspector     `mapstructure:"inspector"`
	Jobs          Jobs          `mapstructure:"jobs"`
	Worker        Worker        `mapstructure:"worker"`
	MCP           MCP           `mapstructure:"mcp"`
}

// Elasticsearch holds ES connection configuration.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses" validate:"required,min=1"`
	Index     string   `mapstructure:"index" validate:"required"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Dims      int      `mapstructure:"dims" validate:"gt=0"`
}

// Embeddings holds embeddings generation configuration.
// The same model embeds chunks at ingestion and instructions at query time.
type Embeddings struct {
	Enabled    bool   `mapstructure:"enabled"`
	SocketPath string `mapstructure:"socket_path" validate:"required_if=Enabled true"`
	Model      string `mapstructure:"model"`
}

// Storage holds S3/MinIO storage configuration.
type Storage struct {
	Endpoint        string `mapstructure:"endpoint" validate:"required"`
	Bucket          string `mapstructure:"bucket" validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Chunker holds document chunking configuration.
type Chunker struct {
	Size    int `mapstructure:"size" validate:"gt=0"`
	Overlap int `mapstructure:"overlap" validate:"gte=0,ltfield=Size"`
}

// Prompt holds context assembly configuration.
type Prompt struct {
	Mode            string  `mapstructure:"mode" validate:"oneof=full retrieval"`
	MaxContextChars int     `mapstructure:"max_context_chars" validate:"gt=0"`
	MaxMarkupChars  int     `mapstructure:"max_markup_chars" validate:"gte=0"`
	TopK            int     `mapstructure:"top_k" validate:"gt=0"`
	MinScore        float64 `mapstructure:"min_score" validate:"gte=0,lte=1"`
}

// LLM holds generation service configuration.
type LLM struct {
	Provider          string    `mapstructure:"provider" validate:"oneof=anthropic gemini dmr"`
	Fallback          string    `mapstructure:"fallback" validate:"omitempty,oneof=anthropic gemini dmr,nefield=Provider"`
	Temperature       float64   `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens         int       `mapstructure:"max_tokens" validate:"gt=0"`
	RequestsPerMinute int       `mapstructure:"requests_per_minute" validate:"gte=0"`
	Retry             Retry     `mapstructure:"retry"`
	Anthropic         Anthropic `mapstructure:"anthropic"`
	Gemini            Gemini    `mapstructure:"gemini"`
	DMR               DMR       `mapstructure:"dmr"`
}

// Retry holds rate-limit retry configuration.
type Retry struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// Anthropic holds Claude API configuration.
type Anthropic struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Gemini holds Google Gemini API configuration.
type Gemini struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// DMR holds Docker Model Runner configuration.
type DMR struct {
	SocketPath string `mapstructure:"socket_path"`
	Model      string `mapstructure:"model"`
}

// Inspector holds target page inspection configuration.
type Inspector struct {
	Enabled   bool          `mapstructure:"enabled"`
	Engine    string        `mapstructure:"engine" validate:"oneof=chromedp colly"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Settle    time.Duration `mapstructure:"settle"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Jobs holds automation job store and polling configuration.
type Jobs struct {
	DSN             string        `mapstructure:"dsn"`
	PollInterval    time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts" validate:"gt=0"`
}

// Worker holds execution worker configuration.
type Worker struct {
	BaseURL string        `mapstructure:"base_url" validate:"omitempty,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Elasticsearch: Elasticsearch{
			Addresses: []string{"http://localhost:9200"},
			Index:     "scriptforge-chunks",
			Dims:      768,
		},
		Embeddings: Embeddings{
			Enabled: false, // requires DMR setup
			Model:   "ai/embeddinggemma",
		},
		Storage: Storage{
			Endpoint:        "localhost:9002",
			Bucket:          "scriptforge",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
		},
		Chunker: Chunker{
			Size:    3000,
			Overlap: 300,
		},
		Prompt: Prompt{
			Mode:            "full",
			MaxContextChars: 120000,
			MaxMarkupChars:  40000,
			TopK:            8,
			MinScore:        0.5,
		},
		LLM: LLM{
			Provider:          "anthropic",
			Temperature:       0.2,
			MaxTokens:         8192,
			RequestsPerMinute: 30,
			Retry: Retry{
				MaxAttempts: 4,
				BaseDelay:   2 * time.Second,
				MaxDelay:    30 * time.Second,
			},
			Anthropic: Anthropic{
				Model:   "claude-sonnet-4-20250514",
				Timeout: 5 * time.Minute,
			},
			Gemini: Gemini{
				Model: "gemini-2.0-flash",
			},
			DMR: DMR{
				Model: "ai/gemma3",
			},
		},
		Inspector: Inspector{
			Enabled:   true,
			Engine:    "colly",
			Timeout:   60 * time.Second,
			Settle:    5 * time.Second,
			UserAgent: "scriptforge/1.0",
		},
		Jobs: Jobs{
			PollInterval:    2 * time.Second,
			MaxPollAttempts: 150,
		},
		Worker: Worker{
			Timeout: 30 * time.Second,
		},
		MCP: MCP{
			Name:    "scriptforge",
			Version: "1.0.0",
		},
	}
}

// Validate checks the assembled configuration once at startup.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
