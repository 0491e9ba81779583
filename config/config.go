// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from file or environment variables.
type Config struct {
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	KeyPrefix     string `mapstructure:"KEY_PREFIX"`

	AWSRegion          string `mapstructure:"AWS_REGION"`
	AWSAccessKeyID     string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `mapstructure:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpoint        string `mapstructure:"AWS_ENDPOINT"`
	S3Bucket           string `mapstructure:"S3_BUCKET"`
	S3UseSSL           bool   `mapstructure:"S3_USE_SSL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	// AdminUsers is a comma-separated list of administrator user ids.
	AdminUsers string `mapstructure:"ADMIN_USERS"`

	FeedWindow int `mapstructure:"FEED_WINDOW"`
}

// AdminIDs returns the parsed administrator id list.
func (c *Config) AdminIDs() []string {
	var ids []string
	for _, id := range strings.Split(c.AdminUsers, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// LoadConfig loads configuration from .env, config file and environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if errors.As(err, &notFoundErr) {
			log.Println("Config file not found; using environment variables and defaults")
		} else {
			log.Fatalf("Error reading config file: %s", err)
		}
	}

	// Set default values
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("KEY_PREFIX", "agora")
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("S3_BUCKET", "agora-media")
	viper.SetDefault("S3_USE_SSL", true)
	viper.SetDefault("FEED_WINDOW", 30)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode config into struct, %v", err)
	}

	return &config
}
