// Command cleanup resets the marketplace data set: it removes every booking
// and trip, plus the seeded demo driver profile. Meant for development and
// staging environments, never production.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/daleapp/dale-backend/config"
	"github.com/daleapp/dale-backend/internal/repository"
	"github.com/daleapp/dale-backend/pkg/db"
)

// Profile id used by the seed fixtures.
const seedDriverID = "00000000-0000-4000-8000-000000000001"

func main() {
	keepProfile := flag.Bool("keep-profile", false, "do not delete the seeded demo driver profile")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer pgPool.Close()

	admin := repository.NewAdminRepository(pgPool)

	log.Println("[cleanup] purging bookings and trips...")
	trips, err := admin.PurgeTrips(ctx)
	if err != nil {
		log.Fatalf("[cleanup] purge failed: %v", err)
	}
	log.Printf("[cleanup] removed %d trip(s)", trips)

	if !*keepProfile {
		log.Printf("[cleanup] removing seeded driver profile %s", seedDriverID)
		if err := admin.DeleteProfile(ctx, seedDriverID); err != nil {
			log.Fatalf("[cleanup] profile delete failed: %v", err)
		}
	}

	log.Println("[cleanup] done")
}
