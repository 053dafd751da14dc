package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Bitmex    Bitmex    `mapstructure:"bitmex"`
	Analytics Analytics `mapstructure:"analytics"`
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
}

// Bitmex holds the configuration for the BitMEX API.
type Bitmex struct {
	ApiKey         string  `mapstructure:"apiKey"`
	SecretKey      string  `mapstructure:"secretKey"`
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Server holds the configuration for the dashboard web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the account store.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Analytics holds tunables for the metrics pipeline.
type Analytics struct {
	// BreakevenThreshold is the absolute PnL band inside which a trade
	// counts as break-even rather than a win or a loss.
	BreakevenThreshold float64 `mapstructure:"breakeven_threshold"`
	// MaxExecutions caps how many executions a full fetch will page through.
	MaxExecutions int `mapstructure:"max_executions"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("bitmex.rate_limit", 10) // requests per second
	viper.SetDefault("bitmex.rate_limit_burst", 5)
	viper.SetDefault("server.port", 5000)
	viper.SetDefault("analytics.breakeven_threshold", 0)
	viper.SetDefault("analytics.max_executions", 10000)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
