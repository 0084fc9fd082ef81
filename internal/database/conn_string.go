package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/signal-bridge/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}

// BuildSQLiteDSN builds a read-only, shared-cache SQLite URI. busyTimeout
// bounds how long a reader waits on the writer's lock before giving up.
func BuildSQLiteDSN(path string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Set("mode", "ro")
	q.Set("cache", "shared")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "query_only(1)")

	return "file:" + escapeSQLitePath(path) + "?" + q.Encode()
}

// escapeSQLitePath escapes the characters that terminate the path part of
// an SQLite URI.
func escapeSQLitePath(path string) string {
	r := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")
	return r.Replace(path)
}
