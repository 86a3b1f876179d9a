package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Scheduler struct {
	GraceWindow     time.Duration
	TickConcurrency int
	GatewayTimeout  time.Duration
	Retention       time.Duration
}

type Config struct {
	ThreadsClientID     string
	ThreadsClientSecret string
	ThreadsRedirectURI  string
	ThreadsAPIBaseURL   string
	GoogleClientID      string
	GoogleClientSecret  string
	GoogleRedirectURI   string
	AIBaseURL           string
	AIAPIKey            string
	AIModel             string
	PostgresURI         string
	RedisURI            string
	FrontendURL         string
	R2                  R2
	Scheduler           Scheduler
	SecretKey           string
	CookieName          string
}

func LoadConfig() *Config {
	return &Config{
		ThreadsClientID:     getEnv("THREADS_CLIENT_ID", ""),
		ThreadsClientSecret: getEnv("THREADS_CLIENT_SECRET", ""),
		ThreadsRedirectURI:  getEnv("THREADS_REDIRECT_URI", ""),
		ThreadsAPIBaseURL:   getEnv("THREADS_API_BASE_URL", "https://graph.threads.net"),
		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:   getEnv("GOOGLE_REDIRECT_URI", "http://localhost:3000/login/callback"),
		AIBaseURL:           getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
		AIAPIKey:            getEnv("AI_API_KEY", ""),
		AIModel:             getEnv("AI_MODEL", "gpt-4o-mini"),
		PostgresURI:         getEnv("POSTGRES_URI", ""),
		RedisURI:            getEnv("REDIS_URI", ""),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		Scheduler: Scheduler{
			GraceWindow:     getEnvDuration("PUBLISH_GRACE_WINDOW", 30*time.Second),
			TickConcurrency: getEnvInt("PUBLISH_TICK_CONCURRENCY", 8),
			GatewayTimeout:  getEnvDuration("PUBLISH_GATEWAY_TIMEOUT", 15*time.Second),
			Retention:       getEnvDuration("POSTED_RETENTION_WINDOW", 24*time.Hour),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", "threads_session"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
