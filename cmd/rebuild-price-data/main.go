package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"game-price-tracker/internal/artifact"
	"game-price-tracker/internal/config"
	"game-price-tracker/internal/database"
	"game-price-tracker/internal/services"
	"game-price-tracker/internal/services/itad"

	"github.com/joho/godotenv"
)

var (
	jsonPath = flag.String("json", "", "output JSON path (default $PRICE_JSON_PATH)")
	jsPath   = flag.String("js", "", "output script path (default $PRICE_JS_PATH)")
	catalog  = flag.String("catalog", "", "title catalog YAML (default: embedded list)")
	delayMS  = flag.Int("delay", -1, "pause between titles in milliseconds")
	dbURL    = flag.String("db", "", "MySQL DSN for the snapshot archive (default $DATABASE_URL)")
	logFile  = flag.String("log", "", "log file path")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()
	applyFlags(cfg)

	os.Exit(run(cfg, *logFile))
}

// run performs one rebuild and returns the process exit code. Deferred
// cleanup runs before main exits.
func run(cfg *config.Config, logPath string) int {
	logWriter := os.Stdout
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("open log file: %v", err)
			return 1
		}
		defer f.Close()
		logWriter = f
	}
	logger := log.New(logWriter, "[PriceRebuild] ", log.LstdFlags)

	titles, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Printf("load catalog: %v", err)
		return 1
	}

	client := itad.NewClient(itad.Options{
		BaseURL:    cfg.ITADBaseURL,
		SeedSlug:   cfg.ITADSeedSlug,
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.HTTPTimeout,
		RetryCount: cfg.HTTPRetryCount,
		Logger:     logger,
	})
	store := &artifact.Store{JSONPath: cfg.PriceJSONPath, JSPath: cfg.PriceJSPath, Global: cfg.PriceJSGlobal}

	rebuilder := services.NewRebuilder(client, store, titles, cfg.TitleDelay)
	rebuilder.SetLogger(logger)

	if cfg.DatabaseURL != "" {
		db, err := database.Initialize(cfg.DatabaseURL)
		if err != nil {
			logger.Printf("snapshot archive disabled: %v", err)
		} else {
			rebuilder.SetArchive(database.NewArchive(db))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	summary, err := rebuilder.Run(ctx)
	if err != nil {
		logger.Printf("rebuild failed: %v", err)
		return 1
	}
	logger.Printf("done in %s: %d titles, %d ok, %d failed -> %s",
		time.Since(started).Round(time.Second), summary.Total, summary.Succeeded, summary.Failed, cfg.PriceJSONPath)
	return 0
}

func applyFlags(cfg *config.Config) {
	if *jsonPath != "" {
		cfg.PriceJSONPath = *jsonPath
	}
	if *jsPath != "" {
		cfg.PriceJSPath = *jsPath
	}
	if *catalog != "" {
		cfg.CatalogPath = *catalog
	}
	if *delayMS >= 0 {
		cfg.TitleDelay = time.Duration(*delayMS) * time.Millisecond
	}
	if *dbURL != "" {
		cfg.DatabaseURL = *dbURL
	}
}
