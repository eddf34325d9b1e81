package environment

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type EnvConfig struct {
	HTTPPort int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// optional integrations; empty disables them
	NatsURL     string
	SqsQueueURL string
	AwsRegion   string

	SubmissionsDir string
	LanguagesPath  string
}

// ReadEnvConfig loads configuration from the environment, with a .env
// file as an optional convenience for local runs.
func ReadEnvConfig() *EnvConfig {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env file: %v", err)
	}

	return &EnvConfig{
		HTTPPort: getEnvAsInt("HTTP_PORT", 8080),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		NatsURL:     getEnv("NATS_URL", ""),
		SqsQueueURL: getEnv("SQS_QUEUE_URL", ""),
		AwsRegion:   getEnv("AWS_REGION", "eu-central-1"),

		SubmissionsDir: getEnv("SUBMISSIONS_DIR", "submissions"),
		LanguagesPath:  getEnv("LANGUAGES_PATH", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid integer for %s: %q, using %d", key, raw, fallback)
		return fallback
	}
	return value
}
