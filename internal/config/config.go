package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
	speechModel "github.com/zhouzirui/affirmation-studio/backend/internal/model/speech"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Speech SpeechConfig
	Log    LogConfig
}

// Load 从环境变量加载配置。凭证是否齐全由 Validate 检查。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := env.ParseAs[AIConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse ai config: %w", err)
	}

	speech, err := env.ParseAs[SpeechConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse speech config: %w", err)
	}

	logCfg, err := env.ParseAs[LogConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse log config: %w", err)
	}

	return &Config{Server: server, AI: ai, Speech: speech, Log: logCfg}, nil
}

// Validate reports missing credentials as a configuration error. Both
// providers are required; there is no partial mode.
func (c *Config) Validate() error {
	var missing []string
	if !c.AI.Enabled() {
		missing = append(missing, "ARK_API_KEY (or ARK_ACCESS_KEY/ARK_SECRET_KEY) and ARK_MODEL")
	}
	if !c.Speech.Enabled() {
		missing = append(missing, "ELEVENLABS_API_KEY")
	}
	if len(missing) > 0 {
		return apperr.New(apperr.Configuration, "config", "missing credentials: "+strings.Join(missing, ", "))
	}

	var errs []error
	if c.AI.AffirmationCount < 1 || c.AI.AffirmationCount > MaxAffirmationCount {
		errs = append(errs, fmt.Errorf("AFFIRMATION_COUNT must be between 1 and %d", MaxAffirmationCount))
	}
	if c.Speech.Timeout <= 0 {
		errs = append(errs, errors.New("SPEECH_TIMEOUT must be positive"))
	}
	if c.Speech.RateLimit < 0 {
		errs = append(errs, errors.New("SPEECH_RATE_LIMIT must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return apperr.Wrap(apperr.Configuration, "config", err)
	}
	return nil
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

// MaxAffirmationCount caps how many affirmations a single generation may ask for.
const MaxAffirmationCount = 20

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string  `env:"ARK_API_KEY"`
	AccessKey   string  `env:"ARK_ACCESS_KEY"`
	SecretKey   string  `env:"ARK_SECRET_KEY"`
	Model       string  `env:"ARK_MODEL"`
	BaseURL     string  `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string  `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature float64 `env:"ARK_TEMPERATURE" envDefault:"0.7"`
	TopP        float64 `env:"ARK_TOP_P"`
	MaxTokens   int     `env:"ARK_MAX_TOKENS" envDefault:"1000"`

	AffirmationCount int `env:"AFFIRMATION_COUNT" envDefault:"5"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return strings.TrimSpace(c.Model) != "" &&
		(strings.TrimSpace(c.APIKey) != "" || (strings.TrimSpace(c.AccessKey) != "" && strings.TrimSpace(c.SecretKey) != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, apperr.New(apperr.Configuration, "chat model", "Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	temperature := float32(c.Temperature)

	var topP *float32
	if c.TopP > 0 {
		val := float32(c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens > 0 {
		val := c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// SpeechConfig 描述语音合成服务相关配置
type SpeechConfig struct {
	APIKey    string        `env:"ELEVENLABS_API_KEY"`
	BaseURL   string        `env:"ELEVENLABS_BASE_URL" envDefault:"https://api.elevenlabs.io/v1"`
	ModelID   string        `env:"ELEVENLABS_MODEL_ID" envDefault:"eleven_multilingual_v2"`
	Timeout   time.Duration `env:"SPEECH_TIMEOUT" envDefault:"60s"`
	RateLimit float64       `env:"SPEECH_RATE_LIMIT" envDefault:"0"`

	Stability       float64 `env:"SPEECH_STABILITY" envDefault:"0.5"`
	SimilarityBoost float64 `env:"SPEECH_SIMILARITY_BOOST" envDefault:"0.75"`
	Style           float64 `env:"SPEECH_STYLE" envDefault:"0"`
	UseSpeakerBoost bool    `env:"SPEECH_USE_SPEAKER_BOOST" envDefault:"true"`
}

// Enabled 表示是否提供了语音服务密钥。
func (c SpeechConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Model converts the env section into the speech client's configuration.
func (c SpeechConfig) Model() *speechModel.SpeechConfig {
	return &speechModel.SpeechConfig{
		APIKey:    strings.TrimSpace(c.APIKey),
		BaseURL:   strings.TrimRight(c.BaseURL, "/"),
		ModelID:   c.ModelID,
		Timeout:   c.Timeout,
		RateLimit: c.RateLimit,
		Settings: speechModel.VoiceSettings{
			Stability:       c.Stability,
			SimilarityBoost: c.SimilarityBoost,
			Style:           c.Style,
			UseSpeakerBoost: c.UseSpeakerBoost,
		},
	}
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}
