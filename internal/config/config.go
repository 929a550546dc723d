/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the registry-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                   string `mapstructure:"SERVER_PORT"`
	DatabaseURL                  string `mapstructure:"DATABASE_URL"`
	RedisURL                     string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix         string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                  string `mapstructure:"RABBITMQ_URL"`
	LedgerJobExchange            string `mapstructure:"LEDGER_JOB_EXCHANGE"`
	LedgerJobRoutingKey          string `mapstructure:"LEDGER_JOB_ROUTING_KEY"`
	LedgerEventExchange          string `mapstructure:"LEDGER_EVENT_EXCHANGE"`
	LedgerEventQueue             string `mapstructure:"LEDGER_EVENT_QUEUE"`
	OffchainAPIBaseURL           string `mapstructure:"OFFCHAIN_API_BASE_URL"`
	OffchainAPIKey               string `mapstructure:"OFFCHAIN_API_KEY"`
	JWTSigningSecret             string `mapstructure:"JWT_SIGNING_SECRET"`
	InternalAPIKey               string `mapstructure:"INTERNAL_API_KEY"`
	NotaryApproverAddress        string `mapstructure:"NOTARY_APPROVER_ADDRESS"`
	FinancialApproverAddress     string `mapstructure:"FINANCIAL_APPROVER_ADDRESS"`
	MunicipalityApproverAddress  string `mapstructure:"MUNICIPALITY_APPROVER_ADDRESS"`
	SubmissionRateLimitPerMinute int    `mapstructure:"SUBMISSION_RATE_LIMIT_PER_MINUTE"`
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
	viper.SetDefault("LEDGER_JOB_EXCHANGE", "ledger_jobs")
	viper.SetDefault("LEDGER_JOB_ROUTING_KEY", "ledger.jobs.submit")
	viper.SetDefault("LEDGER_EVENT_EXCHANGE", "ledger_events")
	viper.SetDefault("LEDGER_EVENT_QUEUE", "registry_service.ledger_updates")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "registry:rate_limit")
	viper.SetDefault("SUBMISSION_RATE_LIMIT_PER_MINUTE", 60)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "REGISTRY_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("LEDGER_JOB_EXCHANGE")
	_ = viper.BindEnv("LEDGER_JOB_ROUTING_KEY")
	_ = viper.BindEnv("LEDGER_EVENT_EXCHANGE")
	_ = viper.BindEnv("LEDGER_EVENT_QUEUE")
	_ = viper.BindEnv("OFFCHAIN_API_BASE_URL")
	_ = viper.BindEnv("OFFCHAIN_API_KEY")
	_ = viper.BindEnv("JWT_SIGNING_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "REGISTRY_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("NOTARY_APPROVER_ADDRESS")
	_ = viper.BindEnv("FINANCIAL_APPROVER_ADDRESS")
	_ = viper.BindEnv("MUNICIPALITY_APPROVER_ADDRESS")
	_ = viper.BindEnv("SUBMISSION_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
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
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("REGISTRY_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "registry:rate_limit"
	}
	config.OffchainAPIBaseURL = strings.TrimRight(strings.TrimSpace(config.OffchainAPIBaseURL), "/")
	config.NotaryApproverAddress = strings.TrimSpace(config.NotaryApproverAddress)
	config.FinancialApproverAddress = strings.TrimSpace(config.FinancialApproverAddress)
	config.MunicipalityApproverAddress = strings.TrimSpace(config.MunicipalityApproverAddress)

	if config.SubmissionRateLimitPerMinute <= 0 {
		config.SubmissionRateLimitPerMinute = 60
	}

	return
}
