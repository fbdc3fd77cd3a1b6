package main

import (
	"context"
	"flag"
	"time"

	"fluxia/common/database"
	"fluxia/common/logger"
	"fluxia/db"
	"fluxia/internal/config"
	"fluxia/internal/migrate"

	"go.uber.org/zap"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "overall migration timeout")
	flag.Parse()

	cfg := config.Load()
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "fluxia-migrate")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	conn, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.String("host", cfg.Database.Host), zap.Error(err))
	}
	defer database.Close(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	applied, err := migrate.Apply(ctx, conn, db.Migrations, "migrations", log)
	if err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	if len(applied) == 0 {
		log.Info("Database schema is up to date")
		return
	}
	log.Info("Migrations applied", zap.Strings("versions", applied))
}
