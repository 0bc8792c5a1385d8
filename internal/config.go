package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/scribe/internal/keywords"
	"github.com/starford/scribe/internal/llm"
	"github.com/starford/scribe/internal/scoring"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	LLM       LLMConfig         `yaml:"llm"`
	Cache     CacheConfig       `yaml:"cache"`
	Scoring   ScoringConfig     `yaml:"scoring"`
	Keywords  KeywordsConfig    `yaml:"keywords"`
	Optimizer OptimizerConfig   `yaml:"optimizer"`
	Inbox     InboxConfig       `yaml:"inbox"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"app", &c.App},
		{"sqlite", &c.SQLite},
		{"auth", &c.Auth},
		{"llm", &c.LLM},
		{"cache", &c.Cache},
		{"scoring", &c.Scoring},
		{"keywords", &c.Keywords},
		{"optimizer", &c.Optimizer},
		{"inbox", &c.Inbox},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds the run history database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// LLMConfig selects the text generation service. MinInterval is the minimum
// gap between any two calls to it, shared by generation and semantic scoring.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(llm.ProviderOpenAI, llm.ProviderAnthropic)),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.MaxTokens, validation.Min(0)),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MinInterval, validation.Min(time.Duration(0))),
	)
}

// Client returns the llm package configuration.
func (c *LLMConfig) Client() llm.Config {
	return llm.Config{
		Provider:    c.Provider,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
	}
}

// CacheConfig holds the generated document cache configuration.
type CacheConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

// RedisConfig holds the Redis connection used by the redis cache backend.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = CacheBackendMemory
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(CacheBackendMemory, CacheBackendRedis, CacheBackendNone)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	if c.Backend == CacheBackendRedis {
		return validation.ValidateStruct(&c.Redis,
			validation.Field(&c.Redis.Address, validation.Required),
			validation.Field(&c.Redis.DB, validation.Min(0)),
		)
	}
	return nil
}

// ScoringConfig holds the technical bands and whether the semantic pass runs.
type ScoringConfig struct {
	Semantic         bool `yaml:"semantic"`
	TitleMin         int  `yaml:"title_min"`
	TitleMax         int  `yaml:"title_max"`
	MetaMin          int  `yaml:"meta_min"`
	MetaMax          int  `yaml:"meta_max"`
	H2Min            int  `yaml:"h2_min"`
	H2Max            int  `yaml:"h2_max"`
	WordsMin         int  `yaml:"words_min"`
	WordsMax         int  `yaml:"words_max"`
	MinImages        int  `yaml:"min_images"`
	MinInternalLinks int  `yaml:"min_internal_links"`
}

// Validate validates the scoring configuration.
func (c *ScoringConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.TitleMin, validation.Min(0)),
		validation.Field(&c.MetaMin, validation.Min(0)),
		validation.Field(&c.H2Min, validation.Min(0)),
		validation.Field(&c.WordsMin, validation.Min(0)),
		validation.Field(&c.MinImages, validation.Min(0)),
		validation.Field(&c.MinInternalLinks, validation.Min(0)),
	); err != nil {
		return err
	}
	bands := []struct {
		name   string
		lo, hi int
	}{
		{"title", c.TitleMin, c.TitleMax},
		{"meta", c.MetaMin, c.MetaMax},
		{"h2", c.H2Min, c.H2Max},
		{"words", c.WordsMin, c.WordsMax},
	}
	for _, b := range bands {
		if b.hi < b.lo {
			return fmt.Errorf("%s band: max %d is below min %d", b.name, b.hi, b.lo)
		}
	}
	return nil
}

// Rules returns the technical scoring bands.
func (c *ScoringConfig) Rules() scoring.Rules {
	return scoring.Rules{
		TitleMin: c.TitleMin, TitleMax: c.TitleMax,
		MetaMin: c.MetaMin, MetaMax: c.MetaMax,
		H2Min: c.H2Min, H2Max: c.H2Max,
		WordsMin: c.WordsMin, WordsMax: c.WordsMax,
		MinImages:        c.MinImages,
		MinInternalLinks: c.MinInternalLinks,
	}
}

// KeywordsConfig holds the keyword metrics provider settings. An empty
// BaseURL disables enrichment.
type KeywordsConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Login       string        `yaml:"login"`
	Password    string        `yaml:"password"`
	Location    string        `yaml:"location"`
	Timeout     time.Duration `yaml:"timeout"`
	Parallelism int           `yaml:"parallelism"`
	BatchSize   int           `yaml:"batch_size"`
}

// Enabled reports whether a provider is configured.
func (c *KeywordsConfig) Enabled() bool {
	return c.BaseURL != ""
}

// Validate validates the keywords configuration.
func (c *KeywordsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Login, validation.When(c.Enabled(), validation.Required)),
		validation.Field(&c.Password, validation.When(c.Enabled(), validation.Required)),
		validation.Field(&c.Parallelism, validation.Min(0), validation.Max(16)),
		validation.Field(&c.BatchSize, validation.Min(0), validation.Max(keywords.BatchSize)),
	)
}

// OptimizerConfig holds the defaults applied to requests that leave them out.
type OptimizerConfig struct {
	Language    string `yaml:"language"`
	MinScore    int    `yaml:"min_score"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// Validate validates the optimizer configuration.
func (c *OptimizerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Language, validation.Required, validation.RuneLength(2, 8)),
		validation.Field(&c.MinScore, validation.Min(0), validation.Max(100)),
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1), validation.Max(10)),
	)
}

// InboxConfig holds the request inbox settings.
type InboxConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Path       string        `yaml:"path"`
	OutputPath string        `yaml:"output_path"`
	Settle     time.Duration `yaml:"settle"`

	// DiscardProcessed deletes successful requests instead of moving them
	// to processed/.
	DiscardProcessed bool `yaml:"discard_processed"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.OutputPath, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Settle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./scribe.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		LLM: LLMConfig{
			Provider:    llm.ProviderOpenAI,
			Model:       "gpt-4o-mini",
			MaxTokens:   8192,
			Temperature: 0.7,
			Timeout:     120 * time.Second,
			MinInterval: time.Second,
		},
		Cache: CacheConfig{
			Backend: CacheBackendMemory,
			TTL:     24 * time.Hour,
			Redis: RedisConfig{
				Address: "localhost:6379",
				Prefix:  "scribe:",
			},
		},
		Scoring: ScoringConfig{
			Semantic:         true,
			TitleMin:         30,
			TitleMax:         60,
			MetaMin:          120,
			MetaMax:          160,
			H2Min:            4,
			H2Max:            8,
			WordsMin:         2000,
			WordsMax:         2600,
			MinImages:        3,
			MinInternalLinks: 3,
		},
		Keywords: KeywordsConfig{
			Location:    "United States",
			Timeout:     60 * time.Second,
			Parallelism: 2,
			BatchSize:   keywords.BatchSize,
		},
		Optimizer: OptimizerConfig{
			Language:    "en",
			MinScore:    80,
			MaxAttempts: 3,
		},
		Inbox: InboxConfig{
			Path:       "./inbox",
			OutputPath: "./inbox/results",
			Settle:     500 * time.Millisecond,
		},
	}
}
