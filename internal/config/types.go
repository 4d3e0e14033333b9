package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/apigate/internal/source"
)

// Duration 兼容纯秒整数与 Go Duration 字符串两种写法。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别 "30s"、"15m" 或纯数字秒值。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 缓存介质驱动。
const (
	StorageDriverFile   = "file"
	StorageDriverSQLite = "sqlite"
)

// GlobalConfig 描述进程级运行参数，所有数据源共享。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	StorageDriver   string   `mapstructure:"StorageDriver"`
	MaxEntryBytes   int64    `mapstructure:"MaxEntryBytes"`
	MaxRetries      int      `mapstructure:"MaxRetries"`
	InitialBackoff  Duration `mapstructure:"InitialBackoff"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// CacheConfig 是缓存型数据源共用的策略覆盖字段，零值表示沿用默认策略。
type CacheConfig struct {
	CacheTTL    Duration `mapstructure:"CacheTTL"`
	MaxAge      Duration `mapstructure:"MaxAge"`
	MinInterval Duration `mapstructure:"MinInterval"`
}

// StrategyOverrides 映射为 source 层的策略覆盖项。
func (c CacheConfig) StrategyOverrides() source.StrategyOptions {
	return source.StrategyOptions{
		TTLOverride:         c.CacheTTL.DurationValue(),
		MaxAgeOverride:      c.MaxAge.DurationValue(),
		MinIntervalOverride: c.MinInterval.DurationValue(),
	}
}

// GitHubConfig 仓库元数据数据源，Token 为空时匿名访问。
type GitHubConfig struct {
	CacheConfig `mapstructure:",squash"`
	Token       string `mapstructure:"Token"`
	BaseURL     string `mapstructure:"BaseURL"`
}

// AuthMode 输出 `credentialed` 或 `anonymous`，供日志字段使用。
func (g GitHubConfig) AuthMode() string {
	if g.Token != "" {
		return "credentialed"
	}
	return "anonymous"
}

// StravaConfig 运动数据数据源，三个凭证字段全部为空时视为未启用。
type StravaConfig struct {
	CacheConfig   `mapstructure:",squash"`
	ClientID      string `mapstructure:"ClientID"`
	ClientSecret  string `mapstructure:"ClientSecret"`
	RefreshToken  string `mapstructure:"RefreshToken"`
	AthleteID     int64  `mapstructure:"AthleteID"`
	TokenURL      string `mapstructure:"TokenURL"`
	BaseURL       string `mapstructure:"BaseURL"`
	ActivityLimit int    `mapstructure:"ActivityLimit"`
}

// Enabled 表示是否配置了凭证。
func (s StravaConfig) Enabled() bool {
	return s.ClientID != "" || s.ClientSecret != "" || s.RefreshToken != ""
}

// SpotifyConfig 正在播放轮询器，凭证全部为空时不启动。
type SpotifyConfig struct {
	ClientID     string   `mapstructure:"ClientID"`
	ClientSecret string   `mapstructure:"ClientSecret"`
	RefreshToken string   `mapstructure:"RefreshToken"`
	TokenURL     string   `mapstructure:"TokenURL"`
	BaseURL      string   `mapstructure:"BaseURL"`
	PollInterval Duration `mapstructure:"PollInterval"`
}

// Enabled 表示是否配置了凭证。
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" || s.ClientSecret != "" || s.RefreshToken != ""
}

// StrategyOverrides 只覆盖轮询间隔。
func (s SpotifyConfig) StrategyOverrides() source.StrategyOptions {
	return source.StrategyOptions{PollIntervalOverride: s.PollInterval.DurationValue()}
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	GitHub  GitHubConfig  `mapstructure:"GitHub"`
	Strava  StravaConfig  `mapstructure:"Strava"`
	Spotify SpotifyConfig `mapstructure:"Spotify"`
}

// SourceModes 返回各数据源的启用情况摘要，例如 github:anonymous、strava:disabled。
func (c *Config) SourceModes() []string {
	if c == nil {
		return nil
	}
	return []string{
		fmt.Sprintf("github:%s", c.GitHub.AuthMode()),
		fmt.Sprintf("spotify:%s", enabledMode(c.Spotify.Enabled())),
		fmt.Sprintf("strava:%s", enabledMode(c.Strava.Enabled())),
	}
}

func enabledMode(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
