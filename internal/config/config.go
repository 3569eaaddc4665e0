package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string

	StoreBackend string
	RedisURL     string

	AIProvider        string
	AIModel           string
	AnthropicKey      string
	AnthropicBaseURL  string
	OpenAIKey         string
	OpenAIBaseURL     string
	OllamaHost        string
	GenerationTimeout time.Duration

	RateLimit      int
	PublicURL      string
	AllowedOrigins []string

	LogLevel  string
	LogFormat string
	LogFile   string

	ExportEnabled bool
	ExportFile    string
}

func FromEnv() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE_BACKEND", "memory")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("AI_PROVIDER", "anthropic")
	v.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	v.SetDefault("GENERATION_TIMEOUT", "90s")
	v.SetDefault("RATE_LIMIT", 3)
	v.SetDefault("PUBLIC_URL", "https://makemegame.com")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("EXPORT_ENABLED", false)
	v.SetDefault("EXPORT_FILE", "./makemegame-results.txt")

	c := Config{}
	c.Port = v.GetString("PORT")
	c.StoreBackend = strings.ToLower(v.GetString("STORE_BACKEND"))
	c.RedisURL = v.GetString("REDIS_URL")
	c.AIProvider = v.GetString("AI_PROVIDER")
	c.AIModel = v.GetString("AI_MODEL")
	c.AnthropicKey = v.GetString("ANTHROPIC_API_KEY")
	c.AnthropicBaseURL = v.GetString("ANTHROPIC_BASE_URL")
	c.OpenAIKey = v.GetString("OPENAI_API_KEY")
	c.OpenAIBaseURL = v.GetString("OPENAI_BASE_URL")
	c.OllamaHost = v.GetString("OLLAMA_HOST")
	c.GenerationTimeout = v.GetDuration("GENERATION_TIMEOUT")
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 90 * time.Second
	}
	c.RateLimit = v.GetInt("RATE_LIMIT")
	if c.RateLimit <= 0 {
		c.RateLimit = 3
	}
	c.PublicURL = strings.TrimRight(v.GetString("PUBLIC_URL"), "/")
	c.AllowedOrigins = splitList(v.GetString("ALLOWED_ORIGINS"))
	c.LogLevel = v.GetString("LOG_LEVEL")
	c.LogFormat = v.GetString("LOG_FORMAT")
	c.LogFile = v.GetString("LOG_FILE")
	c.ExportEnabled = v.GetBool("EXPORT_ENABLED")
	c.ExportFile = v.GetString("EXPORT_FILE")
	return c
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
