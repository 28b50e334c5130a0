package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the service reads from the environment.
type Config struct {
	DatabaseURL string
	ServerPort  int
	LogLevel    slog.Level

	MinPlayers          int
	PlayersPerGroup     int
	DefaultTotalPlayers int
	Autosave            bool
	SaveTimeout         time.Duration

	CORSAllowedOrigins []string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load reads the environment after an optional .env file. An empty
// DATABASE_URL selects the in-memory store.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	level, err := parseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	minPlayers, err := intEnv("MIN_PLAYERS", 24)
	if err != nil {
		return nil, err
	}
	perGroup, err := intEnv("PLAYERS_PER_GROUP", 4)
	if err != nil {
		return nil, err
	}
	if perGroup != 4 {
		return nil, fmt.Errorf("PLAYERS_PER_GROUP must be 4, got %d", perGroup)
	}
	defaultTotal, err := intEnv("DEFAULT_TOTAL_PLAYERS", 24)
	if err != nil {
		return nil, err
	}
	if minPlayers <= 0 || defaultTotal <= 0 {
		return nil, fmt.Errorf("MIN_PLAYERS and DEFAULT_TOTAL_PLAYERS must be positive")
	}

	autosave, err := boolEnv("AUTOSAVE", true)
	if err != nil {
		return nil, err
	}
	saveTimeout, err := durationEnv("SAVE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		ServerPort:          port,
		LogLevel:            level,
		MinPlayers:          minPlayers,
		PlayersPerGroup:     perGroup,
		DefaultTotalPlayers: defaultTotal,
		Autosave:            autosave,
		SaveTimeout:         saveTimeout,
		CORSAllowedOrigins:  listEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		R2AccountID:         os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:       os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:   os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:        os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:     os.Getenv("R2_PUBLIC_BASE_URL"),
	}, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return v, nil
}

func listEnv(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", raw)
	}
}
