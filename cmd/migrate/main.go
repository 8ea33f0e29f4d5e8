package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tradewithme/internal/config"
	"tradewithme/internal/db/migrator"
	"tradewithme/internal/logger"
)

// Applies every pending migration and, on success, writes a plain-SQL
// snapshot of the resulting schema. Any failure exits non-zero with the
// database untouched past the last fully-applied file.
func main() {
	cfgPath := os.Getenv("TW_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if envOnlyRaw := os.Getenv("TW_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// scripts/run_migrations.sh hands the target over as DATABASE_URL;
	// without it the configured postgres settings apply.
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = cfg.Postgres.URL()
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal("database unreachable", zap.Error(err))
	}

	m := migrator.New(pool, cfg.Postgres.MigrationsDir, log)
	if err := m.ApplyAll(ctx); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}

	if err := dumpSchema(ctx, pool, cfg.Postgres.SchemaFile); err != nil {
		log.Fatal("schema dump failed", zap.Error(err))
	}
	log.Info("migrations applied", zap.String("schema_file", cfg.Postgres.SchemaFile))
}

func dumpSchema(ctx context.Context, pool *pgxpool.Pool, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := migrator.DumpSchema(ctx, pool, f); err != nil {
		return err
	}
	return f.Sync()
}
