package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values come from the
// environment first and an optional YAML file overrides them.
type Config struct {
	Addr               string              `yaml:"addr"`
	Environment        string              `yaml:"environment"`
	DefaultCountryCode string              `yaml:"default_country_code"`
	PipelineTimeout    time.Duration       `yaml:"pipeline_timeout"`
	Database           DatabaseConfig      `yaml:"database"`
	Dialpad            DialpadConfig       `yaml:"dialpad"`
	Transcription      TranscriptionConfig `yaml:"transcription"`
	Extraction         ExtractionConfig    `yaml:"extraction"`
	Admin              AdminConfig         `yaml:"admin"`
	Telegram           TelegramConfig      `yaml:"telegram"`
	Sender             SenderConfig        `yaml:"sender"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type DialpadConfig struct {
	APIBase       string        `yaml:"api_base"`
	APIKey        string        `yaml:"api_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Timeout       time.Duration `yaml:"timeout"`
}

type TranscriptionConfig struct {
	URL      string        `yaml:"url"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
	Mock     bool          `yaml:"mock"`
}

type ExtractionConfig struct {
	Provider       string        `yaml:"provider"`
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	Timeout        time.Duration `yaml:"timeout"`
	Mock           bool          `yaml:"mock"`
	OllamaURL      string        `yaml:"ollama_url"`
	VertexProject  string        `yaml:"vertex_project"`
	VertexLocation string        `yaml:"vertex_location"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type SenderConfig struct {
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

// Extraction providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderVertex    = "vertex"
)

// LoadConfig builds the config from env vars and then decodes the YAML file
// at path over it when path is set.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:               ":" + getEnv("PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "local"),
		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "44"),
		PipelineTimeout:    getDuration("PIPELINE_TIMEOUT", 4*time.Minute),
		Database: DatabaseConfig{
			Driver:       getEnv("DATABASE_DRIVER", "sqlite"),
			DSN:          getEnv("DATABASE_URL", "care-ats.db"),
			MaxOpenConns: getInt("DATABASE_MAX_OPEN_CONNS", 10),
		},
		Dialpad: DialpadConfig{
			APIBase:       getEnv("DIALPAD_API_BASE", "https://dialpad.com/api/v2"),
			APIKey:        os.Getenv("DIALPAD_API_KEY"),
			WebhookSecret: os.Getenv("DIALPAD_WEBHOOK_SECRET"),
			Timeout:       getDuration("DIALPAD_TIMEOUT", 60*time.Second),
		},
		Transcription: TranscriptionConfig{
			URL:      getEnv("TRANSCRIBE_URL", "https://api.openai.com/v1/audio/transcriptions"),
			APIKey:   os.Getenv("TRANSCRIBE_API_KEY"),
			Model:    getEnv("TRANSCRIBE_MODEL", "whisper-1"),
			Language: getEnv("TRANSCRIBE_LANGUAGE", "en"),
			Timeout:  getDuration("TRANSCRIBE_TIMEOUT", 120*time.Second),
			Mock:     getBool("USE_MOCK_TRANSCRIBE"),
		},
		Extraction: ExtractionConfig{
			Provider:       getEnv("LLM_PROVIDER", ProviderOpenAI),
			URL:            os.Getenv("LLM_GATEWAY_URL"),
			APIKey:         os.Getenv("LLM_API_KEY"),
			Model:          os.Getenv("LLM_MODEL"),
			Timeout:        getDuration("LLM_TIMEOUT", 90*time.Second),
			Mock:           getBool("USE_MOCK_LLM"),
			OllamaURL:      getEnv("OLLAMA_URL", "http://localhost:11434"),
			VertexProject:  os.Getenv("GOOGLE_CLOUD_PROJECT"),
			VertexLocation: getEnv("GOOGLE_CLOUD_LOCATION", "europe-west2"),
		},
		Admin: AdminConfig{
			JWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		},
		Telegram: TelegramConfig{
			Token:  os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID: int64(getInt("TELEGRAM_CHAT_ID", 0)),
		},
		Sender: SenderConfig{
			MinDelay: getDuration("SENDER_MIN_DELAY", 3*time.Second),
			MaxDelay: getDuration("SENDER_MAX_DELAY", 7*time.Second),
		},
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config %s: %w", path, err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	return cfg, nil
}

// Validate checks the combinations the service cannot start without.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	if !c.Transcription.Mock && c.Extraction.Provider != ProviderVertex && c.Transcription.APIKey == "" {
		errs = append(errs, errors.New("transcription.api_key is required unless USE_MOCK_TRANSCRIBE is set"))
	}

	if !c.Extraction.Mock {
		switch c.Extraction.Provider {
		case ProviderOpenAI, ProviderAnthropic:
			if c.Extraction.APIKey == "" {
				errs = append(errs, fmt.Errorf("extraction.api_key is required for provider %s", c.Extraction.Provider))
			}
		case ProviderOllama:
			if c.Extraction.OllamaURL == "" {
				errs = append(errs, errors.New("extraction.ollama_url is required for provider ollama"))
			}
		case ProviderVertex:
			if c.Extraction.VertexProject == "" {
				errs = append(errs, errors.New("extraction.vertex_project is required for provider vertex"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown extraction provider %q", c.Extraction.Provider))
		}
	}

	if c.Sender.MinDelay < 0 || c.Sender.MaxDelay < c.Sender.MinDelay {
		errs = append(errs, fmt.Errorf("sender delays invalid: min=%s max=%s", c.Sender.MinDelay, c.Sender.MaxDelay))
	}

	if c.IsProduction() && c.Admin.JWTSecret == "" {
		errs = append(errs, errors.New("admin.jwt_secret is required outside local environments"))
	}

	if c.PipelineTimeout <= 0 {
		errs = append(errs, errors.New("pipeline_timeout must be positive"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs outside local/dev.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Environment) {
	case "", "local", "dev", "development", "test":
		return false
	}
	return true
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
