package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Log      Logger         `mapstructure:"logger"`
	DB       Database       `mapstructure:"database"`
	API      API            `mapstructure:"api"`
	Monitor  Monitor        `mapstructure:"monitor"`
	Quote    Quote          `mapstructure:"quote"`
	Cache    Cache          `mapstructure:"cache"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port int `mapstructure:"port"`
}

// Monitor configures the fallback monitoring engine.
type Monitor struct {
	PollInterval             time.Duration `mapstructure:"poll_interval"`
	DefaultFallbackThreshold float64       `mapstructure:"default_fallback_threshold"`
	QuoteSource              string        `mapstructure:"quote_source"`
	DailyReportEnabled       bool          `mapstructure:"daily_report_enabled"`
}

type Quote struct {
	SinaBaseURL         string        `mapstructure:"sina_base_url"`
	XueqiuBaseURL       string        `mapstructure:"xueqiu_base_url"`
	XueqiuCookieURL     string        `mapstructure:"xueqiu_cookie_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type TelegramConfig struct {
	BotToken                  string        `mapstructure:"bot_token"`
	ChatID                    string        `mapstructure:"chat_id"`
	WebhookURL                string        `mapstructure:"webhook_url"`
	TimeoutDuration           time.Duration `mapstructure:"timeout_duration"`
	MaxGlobalRequestPerSecond int           `mapstructure:"max_global_request_per_second"`
	MaxChatRequestPerSecond   int           `mapstructure:"max_chat_request_per_second"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")
	viper.SetDefault("monitor.poll_interval", "3s")
	viper.SetDefault("monitor.default_fallback_threshold", 2.0)
	viper.SetDefault("monitor.quote_source", "sina")
	viper.SetDefault("monitor.daily_report_enabled", true)
	viper.SetDefault("quote.sina_base_url", "https://hq.sinajs.cn")
	viper.SetDefault("quote.xueqiu_base_url", "https://stock.xueqiu.com")
	viper.SetDefault("quote.xueqiu_cookie_url", "https://xueqiu.com")
	viper.SetDefault("quote.timeout", "5s")
	viper.SetDefault("quote.max_request_per_minute", 60)
	viper.SetDefault("cache.default_expiration", "5m")
	viper.SetDefault("cache.cleanup_interval", "10m")
}
