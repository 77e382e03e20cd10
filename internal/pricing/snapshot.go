package pricing

import (
	"encoding/json"

	"game-price-tracker/internal/models"
)

// Storefront identifies a tracked shop in the remote change log and charts.
type Storefront struct {
	Key    string
	ShopID int
	Source string
}

var (
	Steam = Storefront{Key: "steam", ShopID: 61, Source: "Steam"}
	Epic  = Storefront{Key: "epic", ShopID: 16, Source: "Epic Games Store"}
)

const defaultCurrency = "USD"

// ChangeLog is the remote per-game price change log.
type ChangeLog struct {
	Log []json.RawMessage `json:"log"`
}

type changeLogRow struct {
	Shop    any `json:"shop"`
	Current *struct {
		New []any `json:"new"`
		Old []any `json:"old"`
	} `json:"current"`
}

// ExtractStoreSnapshot returns the listing state from the first log row, in
// the log's own order, that belongs to store and carries new/old prices.
// The log is not re-sorted, so callers rely on the service listing newest
// entries first.
func ExtractStoreSnapshot(log ChangeLog, store Storefront) models.StoreSnapshot {
	for _, raw := range log.Log {
		var row changeLogRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		if shop, ok := row.Shop.(float64); !ok || shop != float64(store.ShopID) {
			continue
		}
		if row.Current == nil || row.Current.New == nil || row.Current.Old == nil {
			continue
		}

		snap := models.StoreSnapshot{Currency: defaultCurrency, Source: store.Source}
		if cents, ok := pairAmount(row.Current.New); ok {
			snap.Available = true
			snap.Free = cents <= 0
			snap.Current = ptr(FromCents(cents))
		}
		if cents, ok := pairAmount(row.Current.Old); ok {
			snap.Normal = ptr(FromCents(cents))
		}
		if len(row.Current.New) > 1 {
			if currency, ok := row.Current.New[1].(string); ok && currency != "" {
				snap.Currency = currency
			}
		}
		return snap
	}

	return models.StoreSnapshot{Currency: defaultCurrency, Source: store.Source}
}

func pairAmount(pair []any) (float64, bool) {
	if len(pair) == 0 {
		return 0, false
	}
	return toNumber(pair[0])
}
