package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"game-price-tracker/internal/models"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 500
)

// Archive appends per-run price snapshots and reads them back.
type Archive struct {
	db *gorm.DB
}

func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

// Record writes one row per result in a single batch.
func (a *Archive) Record(ctx context.Context, runAt time.Time, results models.PriceData) error {
	rows := SnapshotRows(runAt, results)
	if len(rows) == 0 {
		return nil
	}
	if err := a.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("insert %d price snapshots: %w", len(rows), err)
	}
	return nil
}

// History returns up to limit of the newest snapshots for key, oldest first.
func (a *Archive) History(ctx context.Context, key string, limit int) ([]models.PriceSnapshot, error) {
	limit = ClampLimit(limit)

	var rows []models.PriceSnapshot
	err := a.db.WithContext(ctx).
		Where("game_key = ?", key).
		Order("run_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query snapshots for %s: %w", key, err)
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// ClampLimit maps a requested row count onto [1, maxHistoryLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	}
	return limit
}

// SnapshotRows flattens results into archive rows ordered by key. Entries
// without store data are skipped.
func SnapshotRows(runAt time.Time, results models.PriceData) []models.PriceSnapshot {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]models.PriceSnapshot, 0, len(keys))
	for _, key := range keys {
		res := results[key]
		if res.Stores == nil {
			continue
		}
		row := models.PriceSnapshot{
			GameKey:        key,
			Title:          res.Title,
			SteamCurrent:   res.Stores.Steam.Current,
			SteamNormal:    res.Stores.Steam.Normal,
			SteamAvailable: res.Stores.Steam.Available,
			EpicCurrent:    res.Stores.Epic.Current,
			EpicNormal:     res.Stores.Epic.Normal,
			EpicAvailable:  res.Stores.Epic.Available,
			Currency:       res.Stores.Steam.Currency,
			HistoryPoints:  len(res.HistoryPoints),
			RunAt:          runAt.UTC(),
		}
		if res.Match != nil {
			row.GID = res.Match.RemoteID
		}
		if row.Currency == "" {
			row.Currency = "USD"
		}
		rows = append(rows, row)
	}
	return rows
}
