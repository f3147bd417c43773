// Package config loads planrun's environment-variable configuration,
// following the same flat getEnv-with-fallback shape the rest of the
// pack uses rather than a flag/YAML layer.
package config

import (
	"os"
	"strconv"
)

// Config holds everything cmd/planrun needs to load and run one plan.
type Config struct {
	// TracePort is the port the live transition websocket listens on.
	// 0 (the TRACE_PORT env var unset or non-numeric) disables the trace
	// server.
	TracePort int
	LogLevel  string
	// AuditDSN is the Postgres DSN for the append-only transition audit
	// log. Empty disables audit persistence.
	AuditDSN string
	// TraceJWTSecret signs/validates live trace subscription tokens. A
	// blank secret disables auth on the trace endpoint (development mode).
	TraceJWTSecret string
}

func Load() *Config {
	return &Config{
		TracePort:      getEnvInt("TRACE_PORT", 0),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AuditDSN:       getEnv("AUDIT_DSN", ""),
		TraceJWTSecret: getEnv("TRACE_JWT_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
