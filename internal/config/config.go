package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Cron       CronConfig       `mapstructure:"cron"`
	Trading    TradingConfig    `mapstructure:"trading"`
	Automation AutomationConfig `mapstructure:"automation"`
	Venue      VenueConfig      `mapstructure:"venue"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	SyntheticCycle string `mapstructure:"synthetic_cycle"`
}

// TradingConfig holds the decision-rule defaults applied when an account has
// no stored strategy.
type TradingConfig struct {
	RSIPeriod        int           `mapstructure:"rsi_period"`
	UpperThreshold   float64       `mapstructure:"upper_threshold"`
	LowerThreshold   float64       `mapstructure:"lower_threshold"`
	BaseStake        float64       `mapstructure:"base_stake"`
	ExpirySeconds    int           `mapstructure:"expiry_seconds"`
	DefaultAsset     string        `mapstructure:"default_asset"`
	SeriesLength     int           `mapstructure:"series_length"`
	ChargingWindow   time.Duration `mapstructure:"charging_window"`
	SimulationMode   bool          `mapstructure:"simulation_mode"`
	HistoryPageLimit int           `mapstructure:"history_page_limit"`
}

// AutomationConfig describes the browser automation surface. DevToolsURL points
// at an already-running headless Chrome; launching the browser itself is the
// deployment's job, not ours.
type AutomationConfig struct {
	DevToolsURL  string        `mapstructure:"devtools_url"`
	ElementWait  time.Duration `mapstructure:"element_wait"`
	NavigateWait time.Duration `mapstructure:"navigate_wait"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type VenueConfig struct {
	LoginURL   string `mapstructure:"login_url"`
	TradingURL string `mapstructure:"trading_url"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", false)
	v.SetDefault("cron.synthetic_cycle", "@every 1m")
	v.SetDefault("trading.rsi_period", 14)
	v.SetDefault("trading.upper_threshold", 60.0)
	v.SetDefault("trading.lower_threshold", 40.0)
	v.SetDefault("trading.base_stake", 10.0)
	v.SetDefault("trading.expiry_seconds", 60)
	v.SetDefault("trading.default_asset", "EUR/USD")
	v.SetDefault("trading.series_length", 100)
	v.SetDefault("trading.charging_window", "1h")
	v.SetDefault("trading.simulation_mode", true)
	v.SetDefault("trading.history_page_limit", 50)
	v.SetDefault("automation.devtools_url", "http://127.0.0.1:9222")
	v.SetDefault("automation.element_wait", "10s")
	v.SetDefault("automation.navigate_wait", "15s")
	v.SetDefault("automation.poll_interval", "250ms")
	v.SetDefault("venue.login_url", "https://pocketoption.com/en/login/")
	v.SetDefault("venue.trading_url", "https://pocketoption.com/en/cabinet/demo-quick-high-low/")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
