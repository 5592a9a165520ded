// Package env reads typed configuration values from the environment.
// Unset or unparsable values fall back to the default; config validation
// happens at the call site, not here.
package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func String(key, def string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return def
}

// StringsCSV splits a comma separated value, dropping empty entries.
// Used for broker lists like "kafka-1:9092,kafka-2:9092".
func StringsCSV(key string, def []string) []string {
	v, ok := lookup(key)
	if !ok {
		return def
	}

	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func Int(key string, def int) int {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func Bool(key string, def bool) bool {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func Duration(key string, def time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
