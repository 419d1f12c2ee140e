package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort   string `mapstructure:"APP_PORT"`
	Env       string `mapstructure:"ENV"`
	JWTSecret string `mapstructure:"JWT_SECRET"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`

	// Club facility settings.
	ClubTimezone       string  `mapstructure:"CLUB_TIMEZONE"`
	ClubAPIRatePerSec  float64 `mapstructure:"CLUB_API_RATE_PER_SEC"`
	StartBufferMinutes int     `mapstructure:"SESSION_START_BUFFER_MINUTES"`

	// Local data files.
	CacheFile   string `mapstructure:"CACHE_FILE"`
	MembersFile string `mapstructure:"MEMBERS_FILE"`

	// Monitor housekeeping.
	MonitorRetentionMinutes int `mapstructure:"MONITOR_RETENTION_MINUTES"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CLUB_TIMEZONE", "Europe/Madrid")
	viper.SetDefault("CLUB_API_RATE_PER_SEC", 0.0)
	viper.SetDefault("SESSION_START_BUFFER_MINUTES", 20)
	viper.SetDefault("CACHE_FILE", "availability_cache.json")
	viper.SetDefault("MEMBERS_FILE", "members.json")
	viper.SetDefault("MONITOR_RETENTION_MINUTES", 60)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

// GetEnv returns the application environment.
func GetEnv() string {
	return AppConfig.Env
}

// IsProduction checks if the environment is production.
func IsProduction() bool {
	return GetEnv() == "production"
}
