package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr        string
	SQLITEDsn   string
	PostgresDsn string

	AdminPIN       string
	SessionSecret  string
	SessionTTLMin  int
	SessionListCap int

	PollIntervalSec int
	HeartbeatSec    int
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val != "" {
		return val
	}
	return def
}

func getenvInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func MustLoad() Config {
	cfg := Config{
		Addr:            getenv("HTTP_ADDR", ":8080"),
		SQLITEDsn:       getenv("SQLITE_DSN", "file:lasechat.db?_pragma=foreign_keys(ON)"),
		PostgresDsn:     getenv("POSTGRES_DSN", ""),
		AdminPIN:        getenv("ADMIN_PIN", ""),
		SessionSecret:   getenv("ADMIN_SESSION_SECRET", ""),
		SessionTTLMin:   getenvInt("ADMIN_SESSION_TTL_MIN", 1440),
		SessionListCap:  getenvInt("SESSION_LIST_CAP", 200),
		PollIntervalSec: getenvInt("POLL_INTERVAL_SEC", 4),
		HeartbeatSec:    getenvInt("HEARTBEAT_SEC", 15),
	}
	return cfg
}
