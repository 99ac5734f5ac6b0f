package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type ServerConfig struct {
	HTTPAddr       string
	LogLevel       string
	LogFormat      string
	DBDSN          string
	CoreAPIBaseURL string
	AllowedOrigins []string

	LLMProvider      string
	LLMModel         string
	LLMTimeout       time.Duration
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	AnthropicBaseURL string
	AnthropicAPIKey  string
	GeminiAPIKey     string

	CatalogTimeout      time.Duration
	ActionTimeout       time.Duration
	ResolverThreshold   float64
	ResolverMinTokenLen int

	WhisperModel string
	ASRBridgeURL string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	GeocodeBaseURL  string
	GeocodeCacheTTL time.Duration
	GeocodeTimeout  time.Duration

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string
	PresenceTTL     time.Duration

	AWSRegion          string
	SOSEmergencyNumber string
	SOSSenderID        string
}

// LoadServerConfig reads .env (when present) and then the process environment.
func LoadServerConfig() (ServerConfig, error) {
	_ = godotenv.Load()

	port := getenvDefault("PORT", "8000")
	cfg := ServerConfig{
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":"+port),
		LogLevel:       strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getenvDefault("LOG_FORMAT", "text")),
		DBDSN:          os.Getenv("DB_DSN"),
		CoreAPIBaseURL: strings.TrimRight(getenvDefault("CORE_API_BASE_URL", "http://localhost:"+port+"/api"), "/"),
		AllowedOrigins: splitList(getenvDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001,http://127.0.0.1:3000,http://127.0.0.1:3001")),

		LLMProvider:      strings.ToLower(getenvDefault("LLM_PROVIDER", "openai")),
		LLMModel:         getenvDefault("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:       time.Duration(getenvIntDefault("LLM_TIMEOUT_SECONDS", 15)) * time.Second,
		OpenAIBaseURL:    getenvDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicBaseURL: getenvDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),

		CatalogTimeout:      time.Duration(getenvIntDefault("CATALOG_TIMEOUT_SECONDS", 10)) * time.Second,
		ActionTimeout:       time.Duration(getenvIntDefault("ACTION_TIMEOUT_SECONDS", 30)) * time.Second,
		ResolverThreshold:   getenvFloatDefault("RESOLVER_THRESHOLD", 0.6),
		ResolverMinTokenLen: getenvIntDefault("RESOLVER_MIN_TOKEN_LEN", 2),

		WhisperModel: getenvDefault("WHISPER_MODEL", "whisper-1"),
		ASRBridgeURL: os.Getenv("ASR_BRIDGE_URL"),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getenvIntDefault("REDIS_DB", 0),
		GeocodeBaseURL:  getenvDefault("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeCacheTTL: time.Duration(getenvIntDefault("GEOCODE_CACHE_TTL_SECONDS", 86400)) * time.Second,
		GeocodeTimeout:  time.Duration(getenvIntDefault("GEOCODE_TIMEOUT_SECONDS", 5)) * time.Second,

		MQTTBrokerURL:   os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:    getenvDefault("MQTT_CLIENT_ID", "scbackend"),
		MQTTUsername:    os.Getenv("MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix: getenvDefault("MQTT_TOPIC_PREFIX", "sc"),
		PresenceTTL:     time.Duration(getenvIntDefault("PRESENCE_TTL_SECONDS", 90)) * time.Second,

		AWSRegion:          getenvDefault("AWS_REGION", "ap-southeast-1"),
		SOSEmergencyNumber: os.Getenv("SOS_EMERGENCY_NUMBER"),
		SOSSenderID:        getenvDefault("SOS_SENDER_ID", "SCAlert"),
	}

	if cfg.DBDSN == "" {
		return ServerConfig{}, fmt.Errorf("DB_DSN is required")
	}
	switch cfg.LLMProvider {
	case "openai", "claude", "gemini", "none":
	default:
		return ServerConfig{}, fmt.Errorf("unsupported LLM_PROVIDER: %s", cfg.LLMProvider)
	}
	if cfg.ResolverThreshold <= 0 || cfg.ResolverThreshold > 1 {
		return ServerConfig{}, fmt.Errorf("RESOLVER_THRESHOLD must be in (0,1], got %v", cfg.ResolverThreshold)
	}
	if cfg.ResolverMinTokenLen < 1 {
		return ServerConfig{}, fmt.Errorf("RESOLVER_MIN_TOKEN_LEN must be at least 1, got %d", cfg.ResolverMinTokenLen)
	}

	return cfg, nil
}

// LLMConfigured reports whether the selected provider has the credentials it needs.
// A missing key is not fatal: the classifier falls back to keyword matching.
func (c ServerConfig) LLMConfigured() bool {
	switch c.LLMProvider {
	case "openai":
		return c.OpenAIAPIKey != ""
	case "claude":
		return c.AnthropicAPIKey != ""
	case "gemini":
		return c.GeminiAPIKey != ""
	default:
		return false
	}
}

func getenvDefault(key, val string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}

func getenvFloatDefault(key string, val float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return val
	}
	return f
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
