package main

import (
	"bufio"
	"flag"
	"log"
	"os"

	"game-price-tracker/internal/artifact"
	"game-price-tracker/internal/config"
	"game-price-tracker/internal/export"

	"github.com/joho/godotenv"
)

var (
	input  = flag.String("in", "", "price JSON artifact (default $PRICE_JSON_PATH)")
	output = flag.String("out", "price-data.xlsx", "workbook path")
)

func main() {
	flag.Parse()
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()
	if *input != "" {
		cfg.PriceJSONPath = *input
	}

	store := &artifact.Store{JSONPath: cfg.PriceJSONPath}
	data, err := store.Load()
	if err != nil {
		log.Fatalf("load %s: %v", cfg.PriceJSONPath, err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create %s: %v", *output, err)
	}
	w := bufio.NewWriter(f)
	if err := export.WriteWorkbook(w, data); err != nil {
		f.Close()
		log.Fatalf("write workbook: %v", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		log.Fatalf("flush %s: %v", *output, err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("close %s: %v", *output, err)
	}
	log.Printf("✓ exported %d titles to %s", len(data), *output)
}
