package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Drive      DriveConfig      `mapstructure:"drive"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`
	Transcoder TranscoderConfig `mapstructure:"transcoder"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Export     ExportConfig     `mapstructure:"export"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DriveConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	PageSize        int64  `mapstructure:"page_size"`
	QPS             int    `mapstructure:"qps"` // 每秒请求数限制
	MediaOnly       bool   `mapstructure:"media_only"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

type ReconcileConfig struct {
	Workers       int           `mapstructure:"workers"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffBaseMS int           `mapstructure:"backoff_base_ms"`
	BackoffMaxMS  int           `mapstructure:"backoff_max_ms"`
	MinFileSizeMB int64         `mapstructure:"min_file_size_mb"` // 小于该值的文件不转码
	Quality       QualityConfig `mapstructure:"quality"`
}

type QualityConfig struct {
	Target                string  `mapstructure:"target"`
	PreserveMetadata      bool    `mapstructure:"preserve_metadata"`
	MinSizeReductionRatio float64 `mapstructure:"min_size_reduction_ratio"`
}

type TranscoderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type LedgerConfig struct {
	Driver   string `mapstructure:"driver"` // file或mysql
	DataDir  string `mapstructure:"data_dir"`
	MySQLDSN string `mapstructure:"mysql_dsn"`
}

type ExportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type TelegramConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	BotToken string  `mapstructure:"bot_token"`
	ChatIDs  []int64 `mapstructure:"chat_ids"`
}

type SchedulerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"` // 如 "0 3 * * *" 每天凌晨3点
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"`
	Format    string `mapstructure:"format"`
	FilePath  string `mapstructure:"file_path"`
	Colorize  bool   `mapstructure:"colorize"`
	AddSource bool   `mapstructure:"add_source"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// 设置默认值
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")

	viper.SetDefault("drive.credentials_file", "credentials.json")
	viper.SetDefault("drive.token_file", "token.json")
	viper.SetDefault("drive.page_size", 1000)
	viper.SetDefault("drive.qps", 10)
	viper.SetDefault("drive.media_only", true)
	viper.SetDefault("drive.timeout_seconds", 120)

	viper.SetDefault("reconcile.workers", 4)
	viper.SetDefault("reconcile.max_attempts", 5)
	viper.SetDefault("reconcile.backoff_base_ms", 500)
	viper.SetDefault("reconcile.backoff_max_ms", 30000)
	viper.SetDefault("reconcile.min_file_size_mb", 0)
	viper.SetDefault("reconcile.quality.target", "medium")
	viper.SetDefault("reconcile.quality.preserve_metadata", true)
	viper.SetDefault("reconcile.quality.min_size_reduction_ratio", 0.3)

	viper.SetDefault("transcoder.base_url", "http://localhost:9090")
	viper.SetDefault("transcoder.timeout_seconds", 600)

	viper.SetDefault("ledger.driver", "file")
	viper.SetDefault("ledger.data_dir", "./data")
	viper.SetDefault("ledger.mysql_dsn", "")

	viper.SetDefault("export.enabled", true)
	viper.SetDefault("export.dir", "./output")

	viper.SetDefault("telegram.enabled", false)

	viper.SetDefault("scheduler.enabled", false)
	viper.SetDefault("scheduler.cron", "0 3 * * *")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "console")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.colorize", true)
	viper.SetDefault("log.add_source", false)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
