package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	JWTSecret               string
	Env                     string
	RoomCodeLength          int
	IdentityTokenTTLMinutes int
}

const defaultSecret = "dev-secret-change-me"

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// Load reads configuration from the environment, after loading a local .env
// file when one exists.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Port:                    getenv("APP_PORT", "8080"),
		JWTSecret:               getenv("JWT_SECRET", defaultSecret),
		Env:                     getenv("APP_ENV", "dev"),
		RoomCodeLength:          getenvInt("ROOM_CODE_LENGTH", 4),
		IdentityTokenTTLMinutes: getenvInt("IDENTITY_TOKEN_TTL_MINUTES", 720),
	}
}

// Validate rejects configurations that must not reach a real deployment.
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port must not be empty")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == defaultSecret {
		return errors.New("default JWT secret is not allowed outside dev")
	}
	if cfg.RoomCodeLength < 1 || cfg.RoomCodeLength > 16 {
		return errors.New("room code length out of range")
	}
	return nil
}
