package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amankumar20031130-afk/taskflow/storage"
)

const (
	driverAzure  = "azure"
	driverMemory = "memory"
)

type config struct {
	ListenAddr string
	Debug      bool

	StorageDriver    string
	ConnectionString string
	Tables           storage.Tables
	EventsQueue      string

	RedisConn       string
	RealtimeChannel string
	UsersCacheTTL   time.Duration
	DeduperTTL      time.Duration

	JWTSecret     []byte
	SessionTTL    time.Duration
	CookieSecure  bool
	Auth0Domain   string
	Auth0Audience string

	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// loadConfig reads the service configuration through getenv.
func loadConfig(getenv func(string) string) (config, error) {
	lookup := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := config{
		ListenAddr:       ":" + lookup("PORT", "8080"),
		StorageDriver:    strings.ToLower(lookup("STORAGE_DRIVER", driverAzure)),
		ConnectionString: getenv("STORAGE_CONNECTION_STRING"),
		Tables: storage.Tables{
			Users:         lookup("USERS_TABLE", "Users"),
			Tasks:         lookup("TASKS_TABLE", "Tasks"),
			Notifications: lookup("NOTIFICATIONS_TABLE", "Notifications"),
			Audit:         lookup("AUDIT_TABLE", "AuditLogs"),
		},
		EventsQueue:     lookup("EVENTS_QUEUE", ""),
		RedisConn:       lookup("REDIS_CONNECTION_STRING", ""),
		RealtimeChannel: lookup("REALTIME_CHANNEL", "taskflow:events"),
		JWTSecret:       []byte(getenv("JWT_SECRET")),
		Auth0Domain:     lookup("AUTH0_DOMAIN", ""),
		Auth0Audience:   lookup("AUTH0_AUDIENCE", ""),
	}
	if port := lookup("FUNCTIONS_CUSTOMHANDLER_PORT", ""); port != "" {
		cfg.ListenAddr = ":" + port
	}

	var err error
	if cfg.Debug, err = parseBool(lookup("DEBUG", "false"), "DEBUG"); err != nil {
		return config{}, err
	}
	if cfg.CookieSecure, err = parseBool(lookup("COOKIE_SECURE", "false"), "COOKIE_SECURE"); err != nil {
		return config{}, err
	}
	if cfg.UsersCacheTTL, err = parseDuration(lookup("USERS_CACHE_TTL", "5m"), "USERS_CACHE_TTL"); err != nil {
		return config{}, err
	}
	if cfg.DeduperTTL, err = parseDuration(lookup("DEDUPER_TTL", "24h"), "DEDUPER_TTL"); err != nil {
		return config{}, err
	}
	if cfg.SessionTTL, err = parseDuration(lookup("SESSION_TTL", "168h"), "SESSION_TTL"); err != nil {
		return config{}, err
	}
	if cfg.ShutdownTimeout, err = parseDuration(lookup("SHUTDOWN_TIMEOUT", "15s"), "SHUTDOWN_TIMEOUT"); err != nil {
		return config{}, err
	}

	for _, origin := range strings.Split(lookup("CORS_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	switch cfg.StorageDriver {
	case driverMemory:
	case driverAzure:
		if cfg.ConnectionString == "" {
			return config{}, errors.New("missing storage config")
		}
	default:
		return config{}, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if len(cfg.JWTSecret) == 0 {
		return config{}, errors.New("missing JWT_SECRET")
	}
	if (cfg.Auth0Domain == "") != (cfg.Auth0Audience == "") {
		return config{}, errors.New("AUTH0_DOMAIN and AUTH0_AUDIENCE must be set together")
	}
	return cfg, nil
}

func parseBool(v, key string) (bool, error) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parseDuration(v, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	return d, nil
}

// parseRedisOptions accepts a redis:// URL or the Azure Cache for Redis form
// "host:port,password=...,ssl=true".
func parseRedisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}
