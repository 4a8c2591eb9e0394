package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerAddr  string `mapstructure:"SERVER_ADDR"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	// Session defaults applied when a room is created without overrides.
	DiscussionSeconds int `mapstructure:"DISCUSSION_SECONDS"`
	ActionSeconds     int `mapstructure:"ACTION_SECONDS"`
	MaxChapters       int `mapstructure:"MAX_CHAPTERS"`
}

var AppConfig *Config

// LoadConfig loads the configuration from a .env file and environment variables.
func LoadConfig() {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.SetDefault("SERVER_ADDR", ":8080")
	viper.SetDefault("DISCUSSION_SECONDS", 300)
	viper.SetDefault("ACTION_SECONDS", 300)
	viper.SetDefault("MAX_CHAPTERS", 5)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
}
