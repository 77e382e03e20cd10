package models

import "encoding/json"

// PriceData is the persisted aggregate: title key -> per-game record.
type PriceData map[string]GameResult

// RawPriceData is the aggregate as stored on disk, one undecoded object per
// title, so fields written by other tools survive a rebuild.
type RawPriceData map[string]json.RawMessage

// GameResult is one title's entry in price-data.json.
type GameResult struct {
	Title         string          `json:"title,omitempty"`
	UpdatedAt     string          `json:"updatedAt,omitempty"`
	FreeExternal  bool            `json:"freeExternal"`
	Stores        *Stores         `json:"stores,omitempty"`
	HistoryPoints []MergedPoint   `json:"historyPoints,omitempty"`
	History       []MonthlyBucket `json:"history,omitempty"`
	DataSource    string          `json:"dataSource,omitempty"`
	Match         *GameMatch      `json:"match,omitempty"`
	Error         string          `json:"error,omitempty"`
}

type Stores struct {
	Steam StoreSnapshot `json:"steam"`
	Epic  StoreSnapshot `json:"epic"`
}

// StoreSnapshot is the current listing state of one storefront.
type StoreSnapshot struct {
	Available bool     `json:"available"`
	Free      bool     `json:"free"`
	Current   *float64 `json:"current"`
	Normal    *float64 `json:"normal"`
	Currency  string   `json:"currency"`
	Source    string   `json:"source"`
}

// MergedPoint carries both storefronts' last known price at At.
type MergedPoint struct {
	At    string   `json:"at"`
	Steam *float64 `json:"steam"`
	Epic  *float64 `json:"epic"`
}

// MonthlyBucket holds the last value observed by the end of Month (YYYY-MM).
type MonthlyBucket struct {
	Month string   `json:"month"`
	Steam *float64 `json:"steam"`
	Epic  *float64 `json:"epic"`
}

// Match methods
const (
	MatchViaSlug   = "slug"
	MatchViaSearch = "search"
)

// GameMatch correlates a local title key with the remote catalog.
type GameMatch struct {
	RemoteID    string `json:"gid"`
	RemoteSlug  string `json:"slug"`
	RemoteTitle string `json:"title"`
	MatchMethod string `json:"via"`
}

// PricePoint is a single observed price, in dollars.
type PricePoint struct {
	TimestampMs int64
	Price       float64
}
