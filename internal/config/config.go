package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ModeAll     = "ALL"
	ModeWebhook = "WEBHOOK"
	ModeWorker  = "WORKER"
)

var (
	ErrMissingBotToken    = errors.New("BOT_TOKEN is required")
	ErrMissingDatabaseDSN = errors.New("DB_DSN is required")
	ErrInvalidProvider    = errors.New("DEFAULT_AI_PROVIDER must be 'openai' or 'gemini'")
)

type Config struct {
	BotToken string
	AppMode  string

	BotName     string
	BotUsername string
	CreatorName string
	GroupName   string

	DevPolling bool

	AI      AIConfig
	Webhook WebhookConfig
	Redis   RedisConfig
	DB      DBConfig
	Worker  WorkerConfig
	HTTP    HTTPConfig
	Rate    RateConfig
	Log     LogConfig

	Projects []Project
}

type Project struct {
	Name        string
	Description string
	URL         string
}

type AIConfig struct {
	OpenAIKey          string
	OpenAIBase         string
	GeminiKey          string
	GeminiBase         string
	DefaultProvider    string
	DefaultOpenAIModel string
	DefaultGeminiModel string
	OpenAIModels       []string
	GeminiModels       []string
}

type WebhookConfig struct {
	ListenAddr     string
	PublicURL      string
	SecretPath     string
	SecretToken    string
	HealthPath     string
	MetricsPath    string
	WebhookTimeout time.Duration
}

type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	QueueStream   string
	QueueGroup    string
	QueueBlock    time.Duration
	UpdateTTL     time.Duration
	AdminCacheTTL time.Duration
}

type DBConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type WorkerConfig struct {
	Concurrency  int
	ConsumerName string
	MaxRetries   int
}

type HTTPConfig struct {
	ClientTimeout time.Duration
	MaxRetries    int
	BackoffBase   time.Duration
}

type RateConfig struct {
	PerHour int64
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		BotToken:    mustEnv("BOT_TOKEN", ""),
		AppMode:     strings.ToUpper(mustEnv("APP_MODE", ModeAll)),
		BotName:     mustEnv("BOT_NAME", "Nerd Master"),
		BotUsername: mustEnv("BOT_USERNAME", "NerdMasterBot"),
		CreatorName: mustEnv("CREATOR_NAME", "Graywizard"),
		GroupName:   mustEnv("GROUP_NAME", "Graywizard Projects"),
		DevPolling:  mustBool("DEV_POLLING", true),
		AI: AIConfig{
			OpenAIKey:          mustEnv("OPENAI_API_KEY", ""),
			OpenAIBase:         mustEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			GeminiKey:          mustEnv("GEMINI_API_KEY", ""),
			GeminiBase:         mustEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			DefaultProvider:    strings.ToLower(mustEnv("DEFAULT_AI_PROVIDER", "gemini")),
			DefaultOpenAIModel: mustEnv("DEFAULT_OPENAI_MODEL", "gpt-4o"),
			DefaultGeminiModel: mustEnv("DEFAULT_GEMINI_MODEL", "gemini-1.5-pro"),
			OpenAIModels:       mustList("OPENAI_MODELS", defaultOpenAIModels),
			GeminiModels:       mustList("GEMINI_MODELS", defaultGeminiModels),
		},
		Webhook: WebhookConfig{
			ListenAddr:     mustEnv("WEBHOOK_LISTEN_ADDR", ":8080"),
			PublicURL:      mustEnv("WEBHOOK_URL", ""),
			SecretPath:     strings.Trim(mustEnv("WEBHOOK_SECRET_PATH", "telegram"), "/"),
			SecretToken:    mustEnv("WEBHOOK_SECRET_TOKEN", ""),
			HealthPath:     mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath:    mustEnv("METRICS_PATH", "/metrics"),
			WebhookTimeout: mustDuration("WEBHOOK_TIMEOUT", 8*time.Second),
		},
		Redis: RedisConfig{
			Addr:          mustEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      mustEnv("REDIS_PASSWORD", ""),
			DB:            mustInt("REDIS_DB", 0),
			QueueStream:   mustEnv("QUEUE_STREAM", "nerdbot:asks"),
			QueueGroup:    mustEnv("QUEUE_GROUP", "nerdbot-workers"),
			QueueBlock:    mustDuration("QUEUE_BLOCK", 5*time.Second),
			UpdateTTL:     mustDuration("UPDATE_DEDUPE_TTL", 6*time.Hour),
			AdminCacheTTL: mustDuration("ADMIN_CACHE_TTL", 10*time.Minute),
		},
		DB: DBConfig{
			Driver:      strings.ToLower(mustEnv("DB_DRIVER", "sqlite")),
			DSN:         mustEnv("DB_DSN", "nerd_master.db"),
			AutoMigrate: mustBool("AUTO_MIGRATE", true),
		},
		Worker: WorkerConfig{
			Concurrency:  mustInt("WORKER_CONCURRENCY", 4),
			ConsumerName: mustEnv("WORKER_CONSUMER_NAME", hostnameOr("worker")),
			MaxRetries:   mustInt("WORKER_MAX_RETRIES", 1),
		},
		HTTP: HTTPConfig{
			ClientTimeout: mustDuration("HTTP_TIMEOUT", 60*time.Second),
			MaxRetries:    mustInt("HTTP_MAX_RETRIES", 0),
			BackoffBase:   mustDuration("HTTP_BACKOFF_BASE", 400*time.Millisecond),
		},
		Rate: RateConfig{
			PerHour: int64(mustInt("RATE_LIMIT_PER_HOUR", 30)),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
		Projects: defaultProjects,
	}

	if cfg.BotToken == "" {
		return nil, ErrMissingBotToken
	}
	if cfg.DB.DSN == "" {
		return nil, ErrMissingDatabaseDSN
	}
	if cfg.AI.DefaultProvider != "openai" && cfg.AI.DefaultProvider != "gemini" {
		return nil, ErrInvalidProvider
	}
	if cfg.AppMode != ModeAll && cfg.AppMode != ModeWebhook && cfg.AppMode != ModeWorker {
		return nil, fmt.Errorf("unsupported APP_MODE %q", cfg.AppMode)
	}

	return cfg, nil
}

var defaultOpenAIModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-4",
	"gpt-3.5-turbo",
	"o1-preview",
	"o1-mini",
}

var defaultGeminiModels = []string{
	"gemini-1.5-pro",
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b",
	"gemini-1.0-pro",
	"gemini-2.0-flash-exp",
}

var defaultProjects = []Project{
	{
		Name:        "Enhancify",
		Description: "A powerful enhancement tool for Android apps",
		URL:         "https://github.com/Graywizard888/Enhancify",
	},
	{
		Name:        "Terminal Ex",
		Description: "Extended terminal with advanced features",
		URL:         "https://github.com/Graywizard888/Terminal_EX",
	},
	{
		Name:        "Custom-Enhancify-aapt2-binary",
		Description: "Custom aapt2 binary for Enhancify",
		URL:         "https://github.com/Graywizard888/Custom-Enhancify-aapt2-binary",
	},
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func mustList(key string, def []string) []string {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func hostnameOr(def string) string {
	h, err := os.Hostname()
	if err != nil || strings.TrimSpace(h) == "" {
		return def
	}
	return h
}
