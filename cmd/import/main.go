package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/ikkim/storefront-backend/internal/importer"
	"github.com/ikkim/storefront-backend/internal/realtime"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/ikkim/storefront-backend/pkg/redis"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/import/main.go <xlsx_file_path> [--yes]")
	}

	filePath := os.Args[1]
	assumeYes := len(os.Args) > 2 && (os.Args[2] == "--yes" || os.Args[2] == "-y")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.Initialize(logger.Config{
		Level:       "info",
		Format:      "console",
		EnableColor: true,
	})

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		log.Fatal("Failed to open XLSX:", err)
	}
	defer file.Close()

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	rows, skipped, err := importer.ReadProducts(file)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Total products to import: %d (unreadable rows: %d)\n", len(rows), len(skipped))

	if !assumeYes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	productRepo := repository.NewProductRepository(db.GetDB())
	var opts []service.Option

	// Running servers on the Redis backend reload their catalog when the
	// import publishes a products change.
	if cfg.Redis.Enabled && cfg.Realtime.Backend == "redis" {
		if err := redis.Init(&cfg.Redis); err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		defer redis.Close()

		broker := realtime.NewRedisBroker(redis.GetClient())
		feed := realtime.NewFeed(broker, productRepo, repository.NewCartRepository(db.GetDB()))
		opts = append(opts, service.WithChangeNotifier(feed))
	}

	products := service.NewProductService(productRepo, opts...)
	report, err := importer.Import(context.Background(), products, rows)
	if err != nil {
		log.Fatal("Import failed:", err)
	}
	report.Skipped = append(skipped, report.Skipped...)

	fmt.Println("Import completed successfully!")
	fmt.Printf("Created: %d, Updated: %d, Skipped: %d\n", report.Created, report.Updated, len(report.Skipped))
	for _, s := range report.Skipped {
		fmt.Printf("  row %d %q: %s\n", s.Row, s.Name, s.Reason)
	}
}
