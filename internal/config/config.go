package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ServerConfig struct {
	Port string
}

type AppConfig struct {
	LogLevel          string
	BatchSize         int
	DateToleranceDays int
}

func Load() (*Config, error) {
	batchSize, err := strconv.Atoi(getEnv("BATCH_SIZE", "10000"))
	if err != nil {
		batchSize = 10000
	}

	tolerance, err := strconv.Atoi(getEnv("MATCH_DATE_TOLERANCE_DAYS", "3"))
	if err != nil {
		tolerance = 3
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ledger_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			BatchSize:         batchSize,
			DateToleranceDays: tolerance,
		},
	}, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
