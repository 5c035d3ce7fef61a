package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config 是 speakd 的顶层配置结构。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	TTS       TTSConfig       `yaml:"tts"`
	Transcode TranscodeConfig `yaml:"transcode"`
	Log       LogConfig       `yaml:"log"`
	Sentry    SentryConfig    `yaml:"sentry"`
}

// ServerConfig HTTP 服务配置。
type ServerConfig struct {
	Addr string `yaml:"addr" env:"SPEAKD_SERVER_ADDR"`
	// SynthesisTimeout 单次合成+转码的超时时间（秒），0 表示不限制。
	SynthesisTimeout int `yaml:"synthesis_timeout" env:"SPEAKD_SERVER_SYNTHESIS_TIMEOUT"`
	// RateLimit 是 POST /speak 每秒允许的请求数，0 表示不限流。
	RateLimit float64 `yaml:"rate_limit" env:"SPEAKD_SERVER_RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"SPEAKD_SERVER_RATE_BURST"`
}

// StorageConfig 音频文件与历史记录存储配置。
type StorageConfig struct {
	OutputDir string `yaml:"output_dir" env:"SPEAKD_STORAGE_OUTPUT_DIR"`
	// DBPath 历史记录数据库路径，显式设为空字符串则不记录历史。
	DBPath *string `yaml:"db_path"`
	// RetentionHours 音频文件保留时长（小时），0 表示永久保留。
	RetentionHours int `yaml:"retention_hours" env:"SPEAKD_STORAGE_RETENTION_HOURS"`
}

// TTSConfig 语音合成配置。
type TTSConfig struct {
	Engine       string         `yaml:"engine" env:"SPEAKD_TTS_ENGINE"`
	DefaultVoice string         `yaml:"default_voice" env:"SPEAKD_TTS_DEFAULT_VOICE"`
	DefaultRate  int            `yaml:"default_rate" env:"SPEAKD_TTS_DEFAULT_RATE"`
	Keywords     KeywordsConfig `yaml:"keywords"`
	Espeak       EspeakConfig   `yaml:"espeak"`
	Say          SayConfig      `yaml:"say"`
	Piper        PiperConfig    `yaml:"piper"`
	Edge         EdgeConfig     `yaml:"edge"`
	Tencent      TencentConfig  `yaml:"tencent"`
	Sherpa       SherpaConfig   `yaml:"sherpa"`
}

// KeywordsConfig 男声/女声关键词列表，与语音显示名做不区分大小写的子串匹配。
type KeywordsConfig struct {
	Female []string `yaml:"female"`
	Male   []string `yaml:"male"`
}

// EspeakConfig espeak-ng 配置。
type EspeakConfig struct {
	Binary string `yaml:"binary"`
	// Language 用于组合变体语音，如 en+f3。
	Language string `yaml:"language"`
}

// SayConfig macOS say 配置。
type SayConfig struct {
	Binary string `yaml:"binary"`
}

// PiperConfig Piper TTS 配置。
type PiperConfig struct {
	Binary    string       `yaml:"binary"`
	ModelPath string       `yaml:"model_path"`
	Voices    []PiperVoice `yaml:"voices"`
}

// PiperVoice 一个可选的 piper 模型。
type PiperVoice struct {
	Name      string `yaml:"name"`
	ModelPath string `yaml:"model_path"`
}

// EdgeConfig Edge TTS 配置。
type EdgeConfig struct {
	Voices []string `yaml:"voices"`
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID  string `yaml:"secret_id" env:"SPEAKD_TENCENT_SECRET_ID"`
	SecretKey string `yaml:"secret_key" env:"SPEAKD_TENCENT_SECRET_KEY"`
	Region    string `yaml:"region" env:"SPEAKD_TENCENT_REGION"`
}

// SherpaConfig sherpa-onnx 离线 VITS 模型配置。
type SherpaConfig struct {
	Model      string          `yaml:"model"`
	Tokens     string          `yaml:"tokens"`
	Lexicon    string          `yaml:"lexicon"`
	DataDir    string          `yaml:"data_dir"`
	NumThreads int             `yaml:"num_threads"`
	Speakers   []SherpaSpeaker `yaml:"speakers"`
}

// SherpaSpeaker 多说话人模型中的一个说话人。
type SherpaSpeaker struct {
	Name string `yaml:"name"`
	ID   int    `yaml:"id"`
}

// TranscodeConfig MP3 转码配置。
type TranscodeConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Backend string `yaml:"backend" env:"SPEAKD_TRANSCODE_BACKEND"`
	Bitrate string `yaml:"bitrate" env:"SPEAKD_TRANSCODE_BITRATE"`
	// FFmpeg 和 Lame 是可执行文件路径，为空时从 PATH 查找。
	FFmpeg string `yaml:"ffmpeg"`
	Lame   string `yaml:"lame"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level string `yaml:"level" env:"SPEAKD_LOG_LEVEL"`
	File  string `yaml:"file" env:"SPEAKD_LOG_FILE"`
}

// SentryConfig 错误上报配置，DSN 为空时不上报。
type SentryConfig struct {
	DSN         string `yaml:"dsn" env:"SPEAKD_SENTRY_DSN"`
	Environment string `yaml:"environment" env:"SPEAKD_SENTRY_ENVIRONMENT"`
}

// DefaultFemaleKeywords 和 DefaultMaleKeywords 是默认的语音关键词。
var (
	DefaultFemaleKeywords = []string{"zira", "hazel", "aria", "jenny", "sonia", "female"}
	DefaultMaleKeywords   = []string{"david", "mark", "guy", "ryan", "male"}
)

// Default 返回全部使用默认值的配置。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开；文件不存在时只使用环境变量和默认值。
// SPEAKD_* 环境变量覆盖文件中的同名配置。
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	default:
		expanded := os.Expand(string(data), func(key string) string {
			return os.Getenv(key)
		})
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// TranscodeEnabled 返回是否启用 MP3 转码（默认启用）。
func (c *Config) TranscodeEnabled() bool {
	return c.Transcode.Enabled == nil || *c.Transcode.Enabled
}

// HistoryDBPath 返回历史记录数据库路径，空字符串表示禁用。
func (c *Config) HistoryDBPath() string {
	if c.Storage.DBPath == nil {
		return ""
	}
	return *c.Storage.DBPath
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":5000"
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst <= 0 {
		cfg.Server.RateBurst = max(1, int(cfg.Server.RateLimit))
	}
	if cfg.Storage.OutputDir == "" {
		cfg.Storage.OutputDir = "static/audio"
	}
	if cfg.Storage.DBPath == nil {
		p := "static/speakd.db"
		cfg.Storage.DBPath = &p
	}
	cfg.Storage.OutputDir = expandHome(cfg.Storage.OutputDir)
	*cfg.Storage.DBPath = expandHome(*cfg.Storage.DBPath)

	if cfg.TTS.Engine == "" {
		cfg.TTS.Engine = "auto"
	}
	cfg.TTS.Engine = strings.ToLower(cfg.TTS.Engine)
	if cfg.TTS.DefaultVoice == "" {
		cfg.TTS.DefaultVoice = "female"
	}
	if cfg.TTS.DefaultRate == 0 {
		cfg.TTS.DefaultRate = 200
	}
	if len(cfg.TTS.Keywords.Female) == 0 {
		cfg.TTS.Keywords.Female = append([]string(nil), DefaultFemaleKeywords...)
	}
	if len(cfg.TTS.Keywords.Male) == 0 {
		cfg.TTS.Keywords.Male = append([]string(nil), DefaultMaleKeywords...)
	}
	if cfg.TTS.Espeak.Binary == "" {
		cfg.TTS.Espeak.Binary = "espeak-ng"
	}
	if cfg.TTS.Espeak.Language == "" {
		cfg.TTS.Espeak.Language = "en"
	}
	if cfg.TTS.Say.Binary == "" {
		cfg.TTS.Say.Binary = "say"
	}
	if cfg.TTS.Piper.Binary == "" {
		cfg.TTS.Piper.Binary = "piper"
	}
	if len(cfg.TTS.Edge.Voices) == 0 {
		cfg.TTS.Edge.Voices = []string{
			"en-US-JennyNeural",
			"en-US-AriaNeural",
			"en-GB-SoniaNeural",
			"en-US-GuyNeural",
			"en-GB-RyanNeural",
		}
	}
	if cfg.TTS.Tencent.Region == "" {
		cfg.TTS.Tencent.Region = "ap-guangzhou"
	}
	if cfg.TTS.Sherpa.NumThreads == 0 {
		cfg.TTS.Sherpa.NumThreads = 2
	}

	if cfg.Transcode.Backend == "" {
		cfg.Transcode.Backend = "auto"
	}
	if cfg.Transcode.Bitrate == "" {
		cfg.Transcode.Bitrate = "128k"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// 去除密钥两端可能的空白（环境变量展开后常见）
	cfg.TTS.Tencent.SecretID = strings.TrimSpace(cfg.TTS.Tencent.SecretID)
	cfg.TTS.Tencent.SecretKey = strings.TrimSpace(cfg.TTS.Tencent.SecretKey)
}

// expandHome 将 ~/ 前缀替换为用户主目录，Go 不会自动展开 ~。
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return path
	}
	return home + path[1:]
}
