package config

import (
	"os"
	"strconv"
	"time"
)

// Config is read from the environment; every field has a default suitable
// for local runs.
type Config struct {
	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
	// PostgresDSN switches storage to Postgres when set; empty means the
	// in-memory store.
	PostgresDSN string
	// LockWait bounds per-room lock waits before a write fails as busy.
	LockWait time.Duration
	// CacheTTL is the inventory read-cache lifetime of the Postgres store.
	CacheTTL time.Duration
}

func Load() Config {
	return Config{
		Host:              getEnv("RESERVE_HOST", "localhost"),
		Port:              getEnv("RESERVE_PORT", "8092"),
		ReadHeaderTimeout: getDuration("RESERVE_READ_HEADER_TIMEOUT_SEC", 20) * time.Second,
		PostgresDSN:       getEnv("RESERVE_POSTGRES_DSN", ""),
		LockWait:          getDuration("RESERVE_LOCK_WAIT_MS", 2000) * time.Millisecond,
		CacheTTL:          getDuration("RESERVE_CACHE_TTL_SEC", 300) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getDuration(key string, fallback int64) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(fallback)
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Duration(fallback)
	}

	return time.Duration(n)
}
