package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// The env helpers fall back to d when k is unset or does not parse.

func envStr(k, d string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return d
	}
}

func envInt(k string, d int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return d
	}
	return n
}

func envFloat(k string, d float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(k), 64)
	if err != nil {
		return d
	}
	return f
}

func envDur(k string, d time.Duration) time.Duration {
	dur, err := time.ParseDuration(os.Getenv(k))
	if err != nil {
		return d
	}
	return dur
}
