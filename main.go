package main

import (
	"log"
	"net/http"

	"game-price-tracker/internal/api"
	"game-price-tracker/internal/artifact"
	"game-price-tracker/internal/config"
	"game-price-tracker/internal/database"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	store := &artifact.Store{JSONPath: cfg.PriceJSONPath}

	var snapshots api.SnapshotReader
	if cfg.DatabaseURL != "" {
		db, err := database.Initialize(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		snapshots = database.NewArchive(db)
	} else {
		log.Println("DATABASE_URL not set, snapshot routes disabled")
	}

	handler := api.NewAPIHandler(store, snapshots, cfg.WSPollInterval)
	r := api.NewRouter(handler)

	log.Printf("Server starting on port %s (serving %s)", cfg.Port, cfg.PriceJSONPath)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
