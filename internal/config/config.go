package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"

	speechmodel "github.com/zhouzirui/poem-tavern/backend/internal/model/speech"
)

// 支持的上游服务商
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// DefaultPoemTimeout 单次上游生成调用的超时
const DefaultPoemTimeout = 30 * time.Second

// Config 聚合整个服务的配置项。
type Config struct {
	Environment string
	Server      ServerConfig
	Poem        PoemConfig
	Speech      SpeechConfig
	Client      ClientConfig
}

// Load 从环境变量（以及可选的 CONFIG_FILE）加载配置。
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	poem, err := loadPoemConfig(v)
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig(v)
	if err != nil {
		return nil, err
	}

	client, err := loadClientConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Environment: strings.TrimSpace(v.GetString("APP_ENV")),
		Server:      server,
		Poem:        poem,
		Speech:      speech,
		Client:      client,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "5000")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("POEM_PROVIDER", ProviderGemini)
	v.SetDefault("ARK_REGION", "cn-beijing")
	v.SetDefault("SPEECH_REGION", "cn-beijing")
	v.SetDefault("SPEECH_TTS_LANGUAGE", "en-US")
	v.SetDefault("SPEECH_TIMEOUT", "30")
	v.SetDefault("POEM_API_URL", "http://localhost:5000")
	v.SetDefault("POEM_CLIENT_TIMEOUT", "45s")
	v.SetDefault("POEM_PLAYER_CMD", "ffplay -nodisp -autoexit -loglevel quiet -")
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	origins := splitList(v.GetString("CORS_ALLOWED_ORIGINS"))

	port := strings.TrimSpace(v.GetString("PORT"))
	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":5000" 或 "127.0.0.1:5000"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if port == "" || strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: "0.0.0.0:" + port, AllowedOrigins: origins}, nil
}

// PoemConfig 上游文本生成服务配置
type PoemConfig struct {
	Provider  string
	APIKey    string
	AccessKey string
	SecretKey string
	Region    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c PoemConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	if c.APIKey != "" {
		return true
	}
	return c.Provider == ProviderArk && c.AccessKey != "" && c.SecretKey != ""
}

// KeyPrefix 返回密钥的短前缀，供诊断展示
func (c PoemConfig) KeyPrefix() string {
	const visible = 6
	if c.APIKey == "" {
		return "NOT_SET"
	}
	if len(c.APIKey) <= visible {
		return strings.Repeat("*", len(c.APIKey))
	}
	return c.APIKey[:visible] + "..."
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c PoemConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk {
		return nil, fmt.Errorf("provider %q has no ark chat model", c.Provider)
	}
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	})
}

func loadPoemConfig(v *viper.Viper) (PoemConfig, error) {
	provider := strings.ToLower(strings.TrimSpace(v.GetString("POEM_PROVIDER")))

	timeout, err := parseSeconds(v, "POEM_TIMEOUT", DefaultPoemTimeout)
	if err != nil {
		return PoemConfig{}, err
	}

	cfg := PoemConfig{
		Provider: provider,
		Model:    strings.TrimSpace(v.GetString("POEM_MODEL")),
		BaseURL:  strings.TrimSpace(v.GetString("POEM_BASE_URL")),
		Timeout:  timeout,
	}

	switch provider {
	case ProviderGemini:
		cfg.APIKey = strings.TrimSpace(v.GetString("GOOGLE_API_KEY"))
		cfg.Model = firstNonEmpty(cfg.Model, "gemini-2.5-flash")
		cfg.BaseURL = firstNonEmpty(cfg.BaseURL, "https://generativelanguage.googleapis.com/v1beta")
	case ProviderOpenAI:
		cfg.APIKey = strings.TrimSpace(v.GetString("OPENAI_API_KEY"))
		cfg.Model = firstNonEmpty(cfg.Model, "gpt-4o-mini")
		cfg.BaseURL = firstNonEmpty(cfg.BaseURL, "https://api.openai.com/v1")
	case ProviderArk:
		cfg.APIKey = strings.TrimSpace(v.GetString("ARK_API_KEY"))
		cfg.AccessKey = strings.TrimSpace(v.GetString("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(v.GetString("ARK_SECRET_KEY"))
		cfg.Region = strings.TrimSpace(v.GetString("ARK_REGION"))
		cfg.Model = firstNonEmpty(cfg.Model, strings.TrimSpace(v.GetString("ARK_MODEL")))
		cfg.BaseURL = firstNonEmpty(cfg.BaseURL, "https://ark.cn-beijing.volces.com/api/v3")
	default:
		return PoemConfig{}, fmt.Errorf("invalid POEM_PROVIDER value %q", provider)
	}

	if override := strings.TrimSpace(v.GetString("POEM_API_KEY")); override != "" {
		cfg.APIKey = override
	}

	return cfg, nil
}

// SpeechConfig 描述语音合成服务相关配置
type SpeechConfig struct {
	AppID       string
	AccessToken string
	Region      string
	TTSVoice    string
	TTSSpeed    float32
	TTSVolume   float32
	TTSLanguage string
	Timeout     int
	Enabled     bool
}

// Model 转换为语音服务使用的配置
func (c SpeechConfig) Model() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		AppID:       c.AppID,
		AccessToken: c.AccessToken,
		Region:      c.Region,
		TTSVoice:    c.TTSVoice,
		TTSSpeed:    c.TTSSpeed,
		TTSVolume:   c.TTSVolume,
		TTSLanguage: c.TTSLanguage,
		Timeout:     c.Timeout,
	}
}

func loadSpeechConfig(v *viper.Viper) (SpeechConfig, error) {
	timeout, err := parseInt(v, "SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}

	speed, err := parseFloat32(v, "SPEECH_TTS_SPEED", 1.0)
	if err != nil {
		return SpeechConfig{}, err
	}

	volume, err := parseFloat32(v, "SPEECH_TTS_VOLUME", 1.0)
	if err != nil {
		return SpeechConfig{}, err
	}

	appID := strings.TrimSpace(v.GetString("SPEECH_APP_ID"))
	accessToken := firstNonEmpty(
		strings.TrimSpace(v.GetString("SPEECH_ACCESS_TOKEN")),
		strings.TrimSpace(v.GetString("SPEECH_API_KEY")),
	)

	return SpeechConfig{
		AppID:       appID,
		AccessToken: accessToken,
		Region:      strings.TrimSpace(v.GetString("SPEECH_REGION")),
		TTSVoice:    strings.TrimSpace(v.GetString("SPEECH_TTS_VOICE")),
		TTSSpeed:    speed,
		TTSVolume:   volume,
		TTSLanguage: strings.TrimSpace(v.GetString("SPEECH_TTS_LANGUAGE")),
		Timeout:     timeout,
		Enabled:     appID != "" && accessToken != "",
	}, nil
}

// ClientConfig 终端聊天客户端配置
type ClientConfig struct {
	APIURL        string
	Timeout       time.Duration
	PlayerCommand []string
}

func loadClientConfig(v *viper.Viper) (ClientConfig, error) {
	timeout, err := parseSeconds(v, "POEM_CLIENT_TIMEOUT", 45*time.Second)
	if err != nil {
		return ClientConfig{}, err
	}

	return ClientConfig{
		APIURL:        strings.TrimRight(strings.TrimSpace(v.GetString("POEM_API_URL")), "/"),
		Timeout:       timeout,
		PlayerCommand: strings.Fields(v.GetString("POEM_PLAYER_CMD")),
	}, nil
}

// parseSeconds 接受 Go 时长格式（"30s"）或纯秒数
func parseSeconds(v *viper.Viper, key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return defaultValue, nil
	}

	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
		}
		return time.Duration(secs) * time.Second, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return d, nil
}

func parseInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloat32(v *viper.Viper, key string, defaultValue float32) (float32, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return float32(val), nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
