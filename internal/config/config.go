package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ModeConfig describes one game mode's grouping parameters
type ModeConfig struct {
	MaxPlayers    int
	MinPlayers    int
	EstimatedWait time.Duration
}

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT (player auth)
	JWTSecret     string
	JWTExpiration time.Duration

	// Game server auth (shared credential, distinct from player auth)
	GameServerSecret string

	// Stats collaborator
	StatsServiceURL string

	// CORS
	CORSAllowedOrigins []string

	// Matchmaking
	MatchmakingInterval time.Duration
	QueueEntryTTL       time.Duration
	QueueJoinLimit      int
	QueueJoinWindow     time.Duration

	// Mode and region tables, injected into the matchmaker and directory
	Modes       map[string]ModeConfig
	GameServers map[string][]string
}

func Load() (*Config, error) {
	// Load .env when present
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:       parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		GameServerSecret:    getEnv("GAME_SERVER_SECRET", ""),
		StatsServiceURL:     getEnv("STATS_SERVICE_URL", "http://localhost:8082"),
		MatchmakingInterval: parseDuration(getEnv("MATCHMAKING_INTERVAL", "10s"), 10*time.Second),
		QueueEntryTTL:       parseDuration(getEnv("QUEUE_ENTRY_TTL", "5m"), 5*time.Minute),
		QueueJoinLimit:      10,
		QueueJoinWindow:     time.Minute,
		CORSAllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
		Modes:               defaultModes(),
		GameServers:         defaultGameServers(),
	}

	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.CORSAllowedOrigins = strings.Split(origins, ",")
	}

	return cfg, nil
}

func defaultModes() map[string]ModeConfig {
	return map[string]ModeConfig{
		"solo":  {MaxPlayers: 100, MinPlayers: 20, EstimatedWait: 30 * time.Second},
		"duo":   {MaxPlayers: 100, MinPlayers: 20, EstimatedWait: 45 * time.Second},
		"squad": {MaxPlayers: 100, MinPlayers: 20, EstimatedWait: 60 * time.Second},
		"ltm":   {MaxPlayers: 50, MinPlayers: 10, EstimatedWait: 90 * time.Second},
	}
}

func defaultGameServers() map[string][]string {
	return map[string][]string{
		"na":   {"na-1.epo.com", "na-2.epo.com", "na-3.epo.com"},
		"eu":   {"eu-1.epo.com", "eu-2.epo.com", "eu-3.epo.com"},
		"oce":  {"oce-1.epo.com", "oce-2.epo.com"},
		"asia": {"asia-1.epo.com", "asia-2.epo.com"},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
