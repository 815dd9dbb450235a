package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"route-optimization-service/internal/adapters/cache"
	"route-optimization-service/internal/adapters/repositories"
	"route-optimization-service/internal/config"
	"route-optimization-service/internal/platform/db"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	databaseURL := config.Get("DATABASE_URL", "")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/geocode.json")
	if err := initAndSeed(ctx, conn, seedPath); err != nil {
		conn.Close()
		log.Fatal(err)
	}
}

func initAndSeed(ctx context.Context, conn *sql.DB, seedPath string) error {
	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	log.Println("Schema ready.")

	if _, err := os.Stat(seedPath); err != nil {
		log.Printf("No seed file at %s, skipping geocode seeding.", seedPath)
		return nil
	}

	log.Println("Seeding geocode cache...")
	ttl := cache.DefaultTTLPolicy()
	if d, err := config.GetDuration("GEOCODE_CACHE_TTL", ttl.Success); err == nil {
		ttl.Success = d
	}
	n, err := repositories.SeedGeocodeCacheFromJSON(ctx, cache.NewSQLGeocodeCache(conn, ttl), seedPath)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Printf("Seeding complete (%d addresses).", n)

	return nil
}
