package models

import "time"

// PriceSnapshot stores one title's storefront state per rebuild run
// to keep a longer history than the rolling 12-month artifact.
type PriceSnapshot struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	GameKey string `json:"game_key" gorm:"size:128;index;not null"`
	GID     string `json:"gid" gorm:"size:64"`
	Title   string `json:"title"`
	// Steam and Epic prices in whole currency units; nil when unknown
	SteamCurrent   *float64 `json:"steam_current"`
	SteamNormal    *float64 `json:"steam_normal"`
	SteamAvailable bool     `json:"steam_available"`
	EpicCurrent    *float64 `json:"epic_current"`
	EpicNormal     *float64 `json:"epic_normal"`
	EpicAvailable  bool     `json:"epic_available"`
	Currency       string   `json:"currency" gorm:"size:8;default:'USD'"`
	HistoryPoints  int      `json:"history_points"`
	// Run timestamp shared by every row written in one rebuild
	RunAt     time.Time `json:"run_at" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}
