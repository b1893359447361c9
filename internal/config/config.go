package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const DefaultPath = "config/config.toml"

// Duration decodes TOML strings such as "45s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type ServerConfig struct {
	Port           string   `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ProviderConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type LLMConfig struct {
	// Provider is used when a model configuration does not name one.
	Provider string         `toml:"provider"`
	OpenAI   ProviderConfig `toml:"openai"`
	Claude   ProviderConfig `toml:"claude"`
	Gemini   ProviderConfig `toml:"gemini"`
	Ollama   ProviderConfig `toml:"ollama"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type RedisConfig struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

type StorageConfig struct {
	Backend  string `toml:"backend"`
	BatchIDs string `toml:"batch_ids"`
}

type BatchConfig struct {
	Concurrency int      `toml:"concurrency"`
	TaskTimeout Duration `toml:"task_timeout"`
	Timeout     Duration `toml:"timeout"`
}

type ScanConfig struct {
	Concurrency  int      `toml:"concurrency"`
	MaxAttempts  int      `toml:"max_attempts"`
	ParseMode    string   `toml:"parse_mode"`
	DefaultTypes []string `toml:"default_types"`
}

type Prompts struct {
	ItemSummary       string `toml:"item_summary"`
	Relationship      string `toml:"relationship"`
	CollectionSummary string `toml:"collection_summary"`
	CollectionReduce  string `toml:"collection_reduce"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
	LLM      LLMConfig      `toml:"llm"`
	Memgraph MemgraphConfig `toml:"memgraph"`
	Redis    RedisConfig    `toml:"redis"`
	Storage  StorageConfig  `toml:"storage"`
	Batch    BatchConfig    `toml:"batch"`
	Scan     ScanConfig     `toml:"scan"`
	Prompts  Prompts        `toml:"prompts"`
}

const (
	DefaultItemSummaryPrompt = `You are a knowledgeable assistant that writes concise, informative summaries of items.
The item is described as JSON with its id, name, type and attributes.
For books, cover the main themes, the author's background and the work's significance.
For people, cover their background, main accomplishments and influence.
For any other item, describe what it is and why it matters.
Answer in plain prose of at most three paragraphs.`

	DefaultRelationshipPrompt = `You analyze whether two items are meaningfully related.
Choose the relationship type only from this list: %s.
Respond with a single JSON object with the fields
"hasRelationship" (boolean), "relationshipType" (one of the listed types),
"confidence" (number between 0 and 1) and "explanation" (short rationale).
If no listed relationship applies, set "hasRelationship" to false.`

	DefaultCollectionSummaryPrompt = `You are analyzing a collection of items. Provide a comprehensive summary of the collection,
including its theme, the kinds of items it contains, common patterns or relationships you observe,
and the overall significance of grouping these items together.
Focus on synthesis and high-level insights rather than listing individual items.`

	DefaultCollectionReducePrompt = `You are given partial summaries of one large collection.
Merge them into a single coherent summary of the whole collection without repeating yourself.`
)

var DefaultRelationshipTypes = []string{"similar_themes", "influenced_by", "contrasts_with"}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Log:    LogConfig{Level: "info", Format: "json"},
		LLM: LLMConfig{
			Provider: "openai",
			Ollama:   ProviderConfig{BaseURL: "http://localhost:11434"},
		},
		Memgraph: MemgraphConfig{URI: "bolt://localhost:7687"},
		Redis:    RedisConfig{Addr: "localhost:6379", KeyPrefix: "genai"},
		Storage:  StorageConfig{Backend: "memgraph", BatchIDs: "graph"},
		Batch: BatchConfig{
			Concurrency: 8,
			TaskTimeout: Duration{2 * time.Minute},
		},
		Scan: ScanConfig{
			Concurrency:  4,
			MaxAttempts:  2,
			ParseMode:    "strict",
			DefaultTypes: append([]string(nil), DefaultRelationshipTypes...),
		},
		Prompts: Prompts{
			ItemSummary:       DefaultItemSummaryPrompt,
			Relationship:      DefaultRelationshipPrompt,
			CollectionSummary: DefaultCollectionSummaryPrompt,
			CollectionReduce:  DefaultCollectionReducePrompt,
		},
	}
}

// Load reads a TOML file on top of Defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides file values with environment variables when set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.Server.Port, "PORT")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.LLM.Provider, "LLM_PROVIDER")
	set(&c.LLM.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.LLM.OpenAI.BaseURL, "OPENAI_BASE_URL")
	set(&c.LLM.Claude.APIKey, "ANTHROPIC_API_KEY")
	set(&c.LLM.Gemini.APIKey, "GEMINI_API_KEY")
	set(&c.LLM.Ollama.BaseURL, "OLLAMA_BASE_URL")
	set(&c.Memgraph.URI, "MEMGRAPH_URI")
	set(&c.Memgraph.User, "MEMGRAPH_USER")
	set(&c.Memgraph.Password, "MEMGRAPH_PASSWORD")
	set(&c.Redis.Addr, "REDIS_ADDR")
	set(&c.Redis.Password, "REDIS_PASSWORD")
	set(&c.Storage.Backend, "STORAGE_BACKEND")
	set(&c.Storage.BatchIDs, "BATCH_ID_SOURCE")

	// LLM_API_KEY / LLM_BASE_URL target the default provider.
	if p := c.LLM.For(c.LLM.Provider); p != nil {
		set(&p.APIKey, "LLM_API_KEY")
		set(&p.BaseURL, "LLM_BASE_URL")
	}

	if v := getenv("BATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Batch.Concurrency = n
		}
	}
}

// For returns the provider block for name, or nil for unknown providers.
func (l *LLMConfig) For(name string) *ProviderConfig {
	switch strings.ToLower(name) {
	case "openai":
		return &l.OpenAI
	case "claude", "anthropic":
		return &l.Claude
	case "gemini", "google":
		return &l.Gemini
	case "ollama":
		return &l.Ollama
	default:
		return nil
	}
}

func (c *Config) Validate() error {
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be at least 1, got %d", c.Batch.Concurrency)
	}
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("scan.concurrency must be at least 1, got %d", c.Scan.Concurrency)
	}
	if c.Batch.TaskTimeout.Duration <= 0 {
		return fmt.Errorf("batch.task_timeout must be positive")
	}
	if c.Scan.MaxAttempts < 1 {
		return fmt.Errorf("scan.max_attempts must be at least 1, got %d", c.Scan.MaxAttempts)
	}
	switch c.Scan.ParseMode {
	case "strict", "lenient":
	default:
		return fmt.Errorf("scan.parse_mode must be strict or lenient, got %q", c.Scan.ParseMode)
	}
	switch c.Storage.Backend {
	case "memgraph", "memory":
	default:
		return fmt.Errorf("storage.backend must be memgraph or memory, got %q", c.Storage.Backend)
	}
	switch c.Storage.BatchIDs {
	case "redis", "graph", "local":
	default:
		return fmt.Errorf("storage.batch_ids must be redis, graph or local, got %q", c.Storage.BatchIDs)
	}
	if c.Storage.Backend == "memory" && c.Storage.BatchIDs == "graph" {
		return fmt.Errorf("storage.batch_ids = graph requires storage.backend = memgraph")
	}
	if !strings.Contains(c.Prompts.Relationship, "%s") {
		return fmt.Errorf("prompts.relationship must contain a %%s placeholder for the relationship types")
	}
	return nil
}
