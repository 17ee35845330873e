package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 ATSASSIST_SERVER_LISTEN
const EnvPrefix = "ATSASSIST"

// Config 配置文件结构体
type Config struct {
	Version string `mapstructure:"version"`

	Sqlite struct {
		Dsn    string `mapstructure:"dsn"`
		Prefix string `mapstructure:"prefix"`
	} `mapstructure:"sqlite"`

	Log struct {
		Level      string   `mapstructure:"level"`
		Writer     []string `mapstructure:"writer"`
		File       string   `mapstructure:"file"`
		MaxSizeMB  int      `mapstructure:"max-size-mb"`
		MaxBackups int      `mapstructure:"max-backups"`
		MaxAgeDays int      `mapstructure:"max-age-days"`
	} `mapstructure:"log"`

	Server struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"server"`

	DevTools struct {
		URL            string `mapstructure:"url"`
		PollIntervalMS int    `mapstructure:"poll-interval-ms"`
		ScanIntervalMS int    `mapstructure:"scan-interval-ms"`
	} `mapstructure:"devtools"`

	Store struct {
		WatchIntervalMS int `mapstructure:"watch-interval-ms"`
	} `mapstructure:"store"`

	Candidates struct {
		BaseURL   string `mapstructure:"base-url"`
		OrgID     string `mapstructure:"org-id"`
		Token     string `mapstructure:"token"`
		CacheTTLS int    `mapstructure:"cache-ttl-s"`
		RetryMax  int    `mapstructure:"retry-max"`
	} `mapstructure:"candidates"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.Sqlite.Dsn = "atsassist.sqlite3"
	c.Sqlite.Prefix = "atsassist_"
	c.Log.Level = "info"
	c.Log.Writer = []string{"console"}
	c.Log.File = "atsassist.log"
	c.Log.MaxSizeMB = 10
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 14
	c.Server.Listen = "127.0.0.1:7345"
	c.DevTools.PollIntervalMS = 1000
	c.DevTools.ScanIntervalMS = 2000
	c.Store.WatchIntervalMS = 1000
	c.Candidates.CacheTTLS = 300
	c.Candidates.RetryMax = 2
	return c
}

// Load 读取配置文件并叠加环境变量，path 为空时仅使用默认值与环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindDefaults(v, NewConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := NewConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindDefaults 注册默认值，使 AutomaticEnv 能覆盖所有已知键
func bindDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("version", c.Version)
	v.SetDefault("sqlite.dsn", c.Sqlite.Dsn)
	v.SetDefault("sqlite.prefix", c.Sqlite.Prefix)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.writer", c.Log.Writer)
	v.SetDefault("log.file", c.Log.File)
	v.SetDefault("log.max-size-mb", c.Log.MaxSizeMB)
	v.SetDefault("log.max-backups", c.Log.MaxBackups)
	v.SetDefault("log.max-age-days", c.Log.MaxAgeDays)
	v.SetDefault("server.listen", c.Server.Listen)
	v.SetDefault("devtools.url", c.DevTools.URL)
	v.SetDefault("devtools.poll-interval-ms", c.DevTools.PollIntervalMS)
	v.SetDefault("devtools.scan-interval-ms", c.DevTools.ScanIntervalMS)
	v.SetDefault("store.watch-interval-ms", c.Store.WatchIntervalMS)
	v.SetDefault("candidates.base-url", c.Candidates.BaseURL)
	v.SetDefault("candidates.org-id", c.Candidates.OrgID)
	v.SetDefault("candidates.token", c.Candidates.Token)
	v.SetDefault("candidates.cache-ttl-s", c.Candidates.CacheTTLS)
	v.SetDefault("candidates.retry-max", c.Candidates.RetryMax)
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Sqlite.Dsn == "" {
		return fmt.Errorf("sqlite.dsn is required")
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Candidates.BaseURL != "" && c.Candidates.OrgID == "" {
		return fmt.Errorf("candidates.org-id is required when candidates.base-url is set")
	}
	return nil
}

// PollInterval 页面轮询间隔
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.DevTools.PollIntervalMS) * time.Millisecond
}

// ScanInterval 标签页扫描间隔
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.DevTools.ScanIntervalMS) * time.Millisecond
}

// WatchInterval 存储跨进程变更轮询间隔
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Store.WatchIntervalMS) * time.Millisecond
}

// CacheTTL 候选人缓存有效期
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Candidates.CacheTTLS) * time.Second
}
