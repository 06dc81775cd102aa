package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey           string
	DatabaseURL            string
	HTTPPort               string
	LogLevel               string
	JWTSecret              string
	PrimaryModel           string
	SecondaryModel         string
	GenerateTimeoutSeconds int
	TrialDays              int
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:            getEnv("DATABASE_URL", "dismaman.db"),
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		LogLevel:               getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		PrimaryModel:           getEnv("PRIMARY_MODEL", "gemini-1.5-pro-latest"),
		SecondaryModel:         getEnv("SECONDARY_MODEL", "gemini-1.5-flash-latest"),
		GenerateTimeoutSeconds: getEnvAsInt("GENERATE_TIMEOUT_SECONDS", 30),
		TrialDays:              getEnvAsInt("TRIAL_DAYS", 30),
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
