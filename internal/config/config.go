/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 * - github.com/shopspring/decimal: Exact decimal transfer bounds.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the banking-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	TransferMinAmount          string `mapstructure:"TRANSFER_MIN_AMOUNT"`
	TransferMaxAmount          string `mapstructure:"TRANSFER_MAX_AMOUNT"`
	TransferMaxRetries         int    `mapstructure:"TRANSFER_MAX_RETRIES"`
	TransferRateLimitPerMinute int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`

	// Parsed decimal forms of the bounds, filled in by LoadConfig.
	MinAmount decimal.Decimal `mapstructure:"-"`
	MaxAmount decimal.Decimal `mapstructure:"-"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "banking:rate_limit")
	viper.SetDefault("TRANSFER_MIN_AMOUNT", "0.01")
	viper.SetDefault("TRANSFER_MAX_AMOUNT", "10000.00")
	viper.SetDefault("TRANSFER_MAX_RETRIES", 3)
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 0) // 0 disables limiting

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("TRANSFER_MIN_AMOUNT")
	_ = viper.BindEnv("TRANSFER_MAX_AMOUNT")
	_ = viper.BindEnv("TRANSFER_MAX_RETRIES")
	_ = viper.BindEnv("TRANSFER_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "banking:rate_limit"
	}

	config.MinAmount, err = decimal.NewFromString(strings.TrimSpace(config.TransferMinAmount))
	if err != nil {
		log.Printf("level=warn component=config msg=\"invalid TRANSFER_MIN_AMOUNT; using 0.01\" value=%q err=%v", config.TransferMinAmount, err)
		config.MinAmount = decimal.RequireFromString("0.01")
		err = nil
	}
	config.MaxAmount, err = decimal.NewFromString(strings.TrimSpace(config.TransferMaxAmount))
	if err != nil {
		log.Printf("level=warn component=config msg=\"invalid TRANSFER_MAX_AMOUNT; using 10000.00\" value=%q err=%v", config.TransferMaxAmount, err)
		config.MaxAmount = decimal.RequireFromString("10000.00")
		err = nil
	}
	if config.MaxAmount.LessThan(config.MinAmount) {
		log.Printf("level=warn component=config msg=\"transfer bounds inverted; swapping\" min=%s max=%s",
			config.MinAmount.String(), config.MaxAmount.String())
		config.MinAmount, config.MaxAmount = config.MaxAmount, config.MinAmount
	}

	if config.TransferMaxRetries <= 0 {
		config.TransferMaxRetries = 3
	}
	if config.TransferRateLimitPerMinute < 0 {
		config.TransferRateLimitPerMinute = 0
	}

	return
}
