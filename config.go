package main

import "os"

// Config holds the environment-driven settings for the server.
type Config struct {
	Port         string
	JWTSecret    string
	DatabasePath string
	StaticDir    string
}

// LoadConfig reads configuration from the environment, falling back to
// development defaults.
func LoadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		JWTSecret:    envOr("JWT_SECRET", "your-secret-key-change-in-production"),
		DatabasePath: envOr("DATABASE_PATH", "./kanban.db"),
		StaticDir:    envOr("STATIC_DIR", "./public"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
