package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
)

// 支持的文本生成服务商。
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Speech  SpeechConfig
	Store   StoreConfig
	Catalog CatalogConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Speech:  speech,
		Store:   store,
		Catalog: CatalogConfig{File: strings.TrimSpace(os.Getenv("COMPANIONS_FILE"))},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "console"),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider     string
	HistoryLimit int
	Temperature  float32
	TopP         float32
	TopK         float32

	Gemini GeminiConfig
	Ark    ArkConfig
	OpenAI OpenAIConfig
}

// GeminiConfig 保存 Gemini 凭据，文本与语音共用。
type GeminiConfig struct {
	APIKey string
	Model  string
}

// ArkConfig 保存火山方舟凭据。
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
	MaxTokens *int
}

// OpenAIConfig 指向任意兼容 OpenAI 的对话接口。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Enabled 表示所选服务商是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderGemini:
		return c.Gemini.APIKey != "" && c.Gemini.Model != ""
	case ProviderArk:
		return c.Ark.Model != "" && (c.Ark.APIKey != "" || (c.Ark.AccessKey != "" && c.Ark.SecretKey != ""))
	case ProviderOpenAI:
		return c.OpenAI.APIKey != "" && c.OpenAI.Model != ""
	}
	return false
}

// NewArkChatModel 使用配置创建一个方舟模型实例。
func (c AIConfig) NewArkChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Ark.Model == "" || (c.Ark.APIKey == "" && (c.Ark.AccessKey == "" || c.Ark.SecretKey == "")) {
		return nil, fmt.Errorf("ark credentials missing: set ARK_API_KEY and Model, or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	temperature := c.Temperature
	topP := c.TopP

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.Ark.BaseURL,
		Region:      c.Ark.Region,
		APIKey:      c.Ark.APIKey,
		AccessKey:   c.Ark.AccessKey,
		SecretKey:   c.Ark.SecretKey,
		Model:       c.Ark.Model,
		MaxTokens:   c.Ark.MaxTokens,
		Temperature: &temperature,
		TopP:        &topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderGemini))
	switch provider {
	case ProviderGemini, ProviderArk, ProviderOpenAI:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature, err := parseFloat32Env("AI_TEMPERATURE", 0.9)
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseFloat32Env("AI_TOP_P", 0.95)
	if err != nil {
		return AIConfig{}, err
	}

	topK, err := parseFloat32Env("AI_TOP_K", 40)
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit := 10
	if override, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 0 {
			historyLimit = 0
		} else {
			historyLimit = *override
		}
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:     provider,
		HistoryLimit: historyLimit,
		Temperature:  temperature,
		TopP:         topP,
		TopK:         topK,
		Gemini: GeminiConfig{
			APIKey: geminiAPIKey(),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-3-flash-preview"),
		},
		Ark: ArkConfig{
			APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:     strings.TrimSpace(os.Getenv("Model")),
			BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
			MaxTokens: maxTokens,
		},
		OpenAI: OpenAIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: getEnvOrDefault("OPENAI_BASE_URL", ""),
			Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		},
	}, nil
}

func geminiAPIKey() string {
	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv("API_KEY"))
}

// SpeechConfig 描述语音合成与识别相关配置
type SpeechConfig struct {
	Enabled bool
	APIKey  string
	Model   string
	Timeout time.Duration
	Format  pcm.Format

	// TranscribeModel 为空时关闭语音输入。
	TranscribeModel string
	// InputFormat 描述客户端上传的原始 PCM。
	InputFormat pcm.Format
}

func loadSpeechConfig() (SpeechConfig, error) {
	enabled, err := parseBoolEnv("SPEECH_ENABLED", true)
	if err != nil {
		return SpeechConfig{}, err
	}

	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30 // 默认30秒
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	format := pcm.L16Mono24K
	if rate, err := parseOptionalIntEnv("SPEECH_SAMPLE_RATE"); err != nil {
		return SpeechConfig{}, err
	} else if rate != nil {
		if *rate <= 0 {
			return SpeechConfig{}, fmt.Errorf("invalid SPEECH_SAMPLE_RATE value %d", *rate)
		}
		format.SampleRate = *rate
	}
	if channels, err := parseOptionalIntEnv("SPEECH_CHANNELS"); err != nil {
		return SpeechConfig{}, err
	} else if channels != nil {
		if *channels <= 0 {
			return SpeechConfig{}, fmt.Errorf("invalid SPEECH_CHANNELS value %d", *channels)
		}
		format.Channels = *channels
	}

	input := pcm.Format{SampleRate: 16000, Channels: 1}
	if rate, err := parseOptionalIntEnv("SPEECH_INPUT_SAMPLE_RATE"); err != nil {
		return SpeechConfig{}, err
	} else if rate != nil {
		if *rate <= 0 {
			return SpeechConfig{}, fmt.Errorf("invalid SPEECH_INPUT_SAMPLE_RATE value %d", *rate)
		}
		input.SampleRate = *rate
	}

	apiKey := geminiAPIKey()
	transcribeModel := getEnvOrDefault("SPEECH_TRANSCRIBE_MODEL", "gemini-2.5-flash")
	if strings.EqualFold(transcribeModel, "off") {
		transcribeModel = ""
	}

	return SpeechConfig{
		Enabled:         enabled && apiKey != "",
		APIKey:          apiKey,
		Model:           getEnvOrDefault("SPEECH_MODEL", "gemini-2.5-flash-preview-tts"),
		Timeout:         time.Duration(timeoutSeconds) * time.Second,
		Format:          format,
		TranscribeModel: transcribeModel,
		InputFormat:     input,
	}, nil
}

// StoreConfig 描述聊天记录的持久化配置。
type StoreConfig struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
	// SQLitePath 为空时本地副本只保存在内存中。
	SQLitePath string
}

// RemoteEnabled 表示是否配置了 Redis 文档存储。
func (c StoreConfig) RemoteEnabled() bool {
	return c.RedisAddr != ""
}

func loadStoreConfig() (StoreConfig, error) {
	db := 0
	if override, err := parseOptionalIntEnv("REDIS_DB"); err != nil {
		return StoreConfig{}, err
	} else if override != nil {
		db = *override
	}

	sqlitePath := "aisuru.db"
	if raw, ok := os.LookupEnv("SQLITE_PATH"); ok {
		sqlitePath = strings.TrimSpace(raw)
	}

	return StoreConfig{
		RedisAddr:      strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        db,
		RedisKeyPrefix: getEnvOrDefault("REDIS_KEY_PREFIX", "chats:"),
		SQLitePath:     sqlitePath,
	}, nil
}

// CatalogConfig 指定可选的角色目录文件。
type CatalogConfig struct {
	File string
}

// LogConfig 选择 zerolog 的日志级别与输出格式。
type LogConfig struct {
	Level  string
	Format string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloat32Env(key string, defaultValue float32) (float32, error) {
	val, err := parseOptionalFloatEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return float32(*val), nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
