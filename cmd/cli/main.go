package main

import (
	"os"
	"strings"

	"github.com/nimasrn/daily-mass/internal/config"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/nimasrn/daily-mass/pkg/pg"
)

// main.go --env=.env --dir=./migrations
func main() {
	envPath := config.EnvPath(os.Args)
	if envPath == "" {
		if _, err := os.Stat(".env"); err == nil {
			envPath = ".env"
		}
	}
	if err := config.Load(envPath); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dir := migrationDir(config.Get().MigrationsDir)
	if err := pg.Migrate(config.Get().PostgresWrite(), dir); err != nil {
		logger.Error("migration: error running migrations", "error", err, "dir", dir)
		os.Exit(1)
	}
}

func migrationDir(fallback string) string {
	for _, v := range os.Args {
		if dir, ok := strings.CutPrefix(v, "--dir="); ok {
			return dir
		}
	}
	return fallback
}
