package main

import (
	"os"
	"strings"

	"github.com/dealerdesk/lead-engine/internal/config"
	"github.com/dealerdesk/lead-engine/pkg/logger"
	"github.com/dealerdesk/lead-engine/pkg/pg"
)

// Usage:
//
//	cli migrate [--env=.env] [--dir=./migrations]
//	cli status  [--env=.env] [--dir=./migrations]
func main() {
	if err := config.Load(getEnvPath()); err != nil {
		logger.Error("failed to load config", "error", err)
	}

	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	var err error
	switch command() {
	case "status":
		err = pg.MigrationStatus(pgConf, getMigrationPath())
	default:
		err = pg.Migrate(pgConf, getMigrationPath())
	}
	if err != nil {
		logger.Error("migration command failed", "error", err)
		os.Exit(1)
	}
}

func command() string {
	for _, v := range os.Args[1:] {
		if !strings.HasPrefix(v, "--") {
			return v
		}
	}
	return "migrate"
}

func getEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file", "error", err)
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open(".env"); err != nil {
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--dir=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the migrations dir", "error", err)
				return ""
			}
			return s[1]
		}
	}
	return "./migrations"
}
