// Package config provides configuration helpers for go-fer commands.
// Values come from flags with FER_* environment fallbacks; a .env file is
// loaded first when present.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment key.
const Prefix = "FER_"

// LoadEnv loads the given .env files, or ./.env when none are named.
// Variables already set in the environment win. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(Prefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// String returns FER_<key> or def.
func String(key, def string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return def
}

// Int returns FER_<key> parsed as an int, or def when unset or invalid.
func Int(key string, def int) int {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Float returns FER_<key> parsed as a float64, or def.
func Float(key string, def float64) float64 {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Bool returns FER_<key> parsed with strconv.ParseBool, or def.
func Bool(key string, def bool) bool {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Duration returns FER_<key> parsed with time.ParseDuration, or def.
func Duration(key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
