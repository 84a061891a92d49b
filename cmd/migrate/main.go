package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"followmate/internal/database"
)

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	files, err := database.MigrationFiles()
	if err != nil {
		log.Fatalf("read embedded migrations: %v", err)
	}
	log.Printf("applying %d embedded migrations: %s", len(files), strings.Join(files, ", "))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := database.Migrate(ctx, databaseURL); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	log.Print("migrations applied successfully")
}
