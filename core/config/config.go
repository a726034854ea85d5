package config

import (
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App          AppConfig
	Valkey       ValkeyConfig
	Cache        CacheConfig
	Conversation ConversationConfig
	Plex         PlexConfig
	Security     SecurityConfig
	LLM          LLMConfig
	Search       SearchConfig
	MCP          MCPConfig
	WorkerPool   WorkerPoolConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasePath           string
	FrontendURL        string
	CorsAllowedOrigins []string
	TrustedProxies     []string
	ServerID           string
}

type ValkeyConfig struct {
	// Driver is "valkey" or "memory". The memory driver keeps everything in
	// process and is meant for local runs without a Valkey server.
	Driver    string
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

type CacheConfig struct {
	Namespace  string
	DefaultTTL time.Duration
}

type ConversationConfig struct {
	TTL              time.Duration
	MaxPerUser       int
	ListLimit        int
	MaxIterations    int
	StreamBufferSize int
	// Activity buffer of the agent monitor.
	MonitorBuffer int
	MonitorTTL    time.Duration
}

type PlexConfig struct {
	ClientIdentifier string
	ProductName      string
	Timeout          time.Duration
}

type SecurityConfig struct {
	SessionSecretKey   string
	JWTAlgorithm       string
	JWTExpirationHours int
}

type LLMConfig struct {
	Provider    string
	Model       string
	Temperature float64
	OpenAIKey   string
	GeminiKey   string
}

type SearchConfig struct {
	TavilyAPIKey string
	TavilyURL    string
}

type MCPConfig struct {
	Port      string
	Host      string
	PlexToken string
	UserID    int64
	Server    string
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	frontendURL := getEnv("FRONTEND_URL", "http://localhost:5173")

	corsOrigins := []string{frontendURL}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v0.4.0",
		Port:               getEnv("APP_PORT", "8000"),
		Debug:              getEnvBool("APP_DEBUG", false),
		Environment:        getEnv("APP_ENV", "development"),
		BasePath:           getEnv("APP_BASE_PATH", ""),
		FrontendURL:        frontendURL,
		CorsAllowedOrigins: corsOrigins,
		ServerID:           getEnv("SERVER_ID", ""),
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	provider := strings.ToLower(getEnv("LLM_PROVIDER", "openai"))
	defaultModel := "gpt-5.1"
	if provider == "gemini" {
		defaultModel = "gemini-2.5-flash"
	}

	cfg := &Config{
		App: appCfg,
		Valkey: ValkeyConfig{
			Driver:    getEnv("STORE_DRIVER", "valkey"),
			Address:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
			Password:  getEnv("VALKEY_PASSWORD", ""),
			DB:        getEnvInt("VALKEY_DB", 0),
			KeyPrefix: getEnv("VALKEY_KEY_PREFIX", ""),
		},
		Cache: CacheConfig{
			Namespace:  getEnv("CACHE_NAMESPACE", "plex"),
			DefaultTTL: getEnvSeconds("CACHE_TTL_SECONDS", 7*24*time.Hour),
		},
		Conversation: ConversationConfig{
			TTL:              getEnvSeconds("CONVERSATION_TTL_SECONDS", 30*24*time.Hour),
			MaxPerUser:       getEnvInt("CONVERSATION_MAX_PER_USER", 50),
			ListLimit:        getEnvInt("CONVERSATION_LIST_LIMIT", 20),
			MaxIterations:    getEnvInt("AGENT_MAX_ITERATIONS", 5),
			StreamBufferSize: getEnvInt("AGENT_STREAM_BUFFER", 32),
			MonitorBuffer:    getEnvInt("AGENT_MONITOR_BUFFER", 500),
			MonitorTTL:       getEnvSeconds("AGENT_MONITOR_TTL_SECONDS", 24*time.Hour),
		},
		Plex: PlexConfig{
			ClientIdentifier: getEnv("PLEX_CLIENT_IDENTIFIER", "plex-ai-backend"),
			ProductName:      getEnv("PLEX_PRODUCT_NAME", "Plex AI"),
			Timeout:          getEnvSeconds("PLEX_TIMEOUT_SECONDS", 60*time.Second),
		},
		Security: SecurityConfig{
			SessionSecretKey:   getEnv("SESSION_SECRET_KEY", "change-me-in-production"),
			JWTAlgorithm:       getEnv("JWT_ALGORITHM", "HS256"),
			JWTExpirationHours: getEnvInt("JWT_EXPIRATION_HOURS", 168),
		},
		LLM: LLMConfig{
			Provider:    provider,
			Model:       getEnv("LLM_MODEL", defaultModel),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
			GeminiKey:   getEnv("GEMINI_API_KEY", ""),
		},
		Search: SearchConfig{
			TavilyAPIKey: getEnv("TAVILY_API_KEY", ""),
			TavilyURL:    getEnv("TAVILY_URL", "https://api.tavily.com"),
		},
		MCP: MCPConfig{
			Port:      getEnv("MCP_PORT", "8080"),
			Host:      getEnv("MCP_HOST", "localhost"),
			PlexToken: getEnv("MCP_PLEX_TOKEN", ""),
			UserID:    getEnvInt64("MCP_USER_ID", 0),
			Server:    getEnv("MCP_SERVER_NAME", ""),
		},
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("AGENT_WORKER_POOL_SIZE", 16),
			QueueSize: getEnvInt("AGENT_WORKER_QUEUE_SIZE", 64),
		},
	}

	Global = cfg
	return cfg, nil
}
