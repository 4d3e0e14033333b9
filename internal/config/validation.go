package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	switch g.StorageDriver {
	case StorageDriverFile, StorageDriverSQLite:
	default:
		return newFieldError("Global.StorageDriver", "仅支持 file|sqlite")
	}
	if g.MaxEntryBytes < 0 {
		return newFieldError("Global.MaxEntryBytes", "不能为负数")
	}
	if g.MaxRetries < 0 {
		return newFieldError("Global.MaxRetries", "不能为负数")
	}
	if g.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Global.InitialBackoff", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	if err := validateGitHub(c.GitHub); err != nil {
		return err
	}
	if err := validateStrava(c.Strava); err != nil {
		return err
	}
	return validateSpotify(c.Spotify)
}

func validateGitHub(g GitHubConfig) error {
	if err := validateCache("GitHub", g.CacheConfig); err != nil {
		return err
	}
	return validateURL("GitHub", "BaseURL", g.BaseURL)
}

func validateStrava(s StravaConfig) error {
	if err := validateCache("Strava", s.CacheConfig); err != nil {
		return err
	}
	if !s.Enabled() {
		return nil
	}
	if s.ClientID == "" || s.ClientSecret == "" || s.RefreshToken == "" {
		return newFieldError(sectionField("Strava", "ClientID/ClientSecret/RefreshToken"), "必须同时提供或同时留空")
	}
	if s.AthleteID <= 0 {
		return newFieldError(sectionField("Strava", "AthleteID"), "启用时必须大于 0")
	}
	if s.ActivityLimit <= 0 || s.ActivityLimit > 200 {
		return newFieldError(sectionField("Strava", "ActivityLimit"), "必须在 1-200")
	}
	if err := validateURL("Strava", "TokenURL", s.TokenURL); err != nil {
		return err
	}
	return validateURL("Strava", "BaseURL", s.BaseURL)
}

func validateSpotify(s SpotifyConfig) error {
	if s.PollInterval.DurationValue() < 0 {
		return newFieldError(sectionField("Spotify", "PollInterval"), "不能为负数")
	}
	if !s.Enabled() {
		return nil
	}
	if s.ClientID == "" || s.ClientSecret == "" || s.RefreshToken == "" {
		return newFieldError(sectionField("Spotify", "ClientID/ClientSecret/RefreshToken"), "必须同时提供或同时留空")
	}
	if err := validateURL("Spotify", "TokenURL", s.TokenURL); err != nil {
		return err
	}
	return validateURL("Spotify", "BaseURL", s.BaseURL)
}

func validateCache(section string, c CacheConfig) error {
	ttl := c.CacheTTL.DurationValue()
	maxAge := c.MaxAge.DurationValue()
	if ttl < 0 {
		return newFieldError(sectionField(section, "CacheTTL"), "不能为负数")
	}
	if maxAge < 0 {
		return newFieldError(sectionField(section, "MaxAge"), "不能为负数")
	}
	if c.MinInterval.DurationValue() < 0 {
		return newFieldError(sectionField(section, "MinInterval"), "不能为负数")
	}
	if ttl > 0 && maxAge > 0 && maxAge < ttl {
		return newFieldError(sectionField(section, "MaxAge"), "不能小于 CacheTTL")
	}
	return nil
}

func validateURL(section, field, raw string) error {
	name := sectionField(section, field)
	if strings.TrimSpace(raw) == "" {
		return newFieldError(name, "缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return newFieldError(name, fmt.Sprintf("仅支持 http/https: %s", raw))
	}
	if parsed.Host == "" {
		return newFieldError(name, fmt.Sprintf("缺少 Host: %s", raw))
	}
	return nil
}
