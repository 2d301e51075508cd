package main

import (
	"context"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/amankumar20031130-afk/taskflow/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}

	tables := storage.Tables{
		Users:         envOr("USERS_TABLE", "Users"),
		Tasks:         envOr("TASKS_TABLE", "Tasks"),
		Notifications: envOr("NOTIFICATIONS_TABLE", "Notifications"),
		Audit:         envOr("AUDIT_TABLE", "AuditLogs"),
	}
	if err := storage.Provision(context.Background(), connStr, tables, os.Getenv("EVENTS_QUEUE")); err != nil {
		log.Fatalf("provision: %v", err)
	}

	log.Info("storage init complete")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
