package main

// Manage the index schema:
//   go run ./cmd/migrate [up|down|version]

import (
	"context"
	"log"
	"os"

	"critique-backend/internal/shared/config"
	"critique-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	switch cmd {
	case "up":
		err = db.RunMigrations(ctx, sqlDB)
	case "down":
		err = db.RollbackLast(ctx, sqlDB)
	case "version":
		var v int64
		if v, err = db.Version(sqlDB); err == nil {
			log.Printf("schema version %d", v)
		}
	default:
		log.Printf("unknown command %q (want up, down or version)", cmd)
		sqlDB.Close()
		os.Exit(2)
	}
	if err != nil {
		log.Printf("migrate %s failed: %v", cmd, err)
		sqlDB.Close()
		os.Exit(1)
	}
}
