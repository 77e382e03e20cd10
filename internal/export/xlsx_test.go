package export

import (
	"bytes"
	"testing"

	"game-price-tracker/internal/models"

	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	steam, epic := 59.99, 49.99
	data := models.PriceData{
		"elden-ring": {
			Title:     "ELDEN RING",
			UpdatedAt: "2025-06-15 12:00:00 UTC",
			Stores: &models.Stores{
				Steam: models.StoreSnapshot{Available: true, Current: &steam, Normal: &steam},
				Epic:  models.StoreSnapshot{Available: true, Current: &epic},
			},
			History: []models.MonthlyBucket{
				{Month: "2025-05", Steam: &steam},
				{Month: "2025-06", Steam: &steam, Epic: &epic},
			},
		},
		"broken": {Title: "Broken", Error: "no ITAD game match found"},
	}

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 2 || sheets[0] != StoresSheet || sheets[1] != HistorySheet {
		t.Fatalf("sheets: %v", sheets)
	}

	rows, err := f.GetRows(StoresSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0][0] != "key" {
		t.Fatalf("stores rows: %v", rows)
	}
	if rows[1][0] != "broken" || rows[1][9] != "no ITAD game match found" || rows[1][2] != "" {
		t.Errorf("broken row: %v", rows[1])
	}
	if rows[2][0] != "elden-ring" || rows[2][2] != "59.99" || rows[2][4] != "TRUE" || rows[2][7] != "TRUE" {
		t.Errorf("elden row: %v", rows[2])
	}

	hist, err := f.GetRows(HistorySheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 3 || hist[1][1] != "2025-05" || hist[2][3] != "49.99" {
		t.Fatalf("history rows: %v", hist)
	}
	if len(hist[1]) > 3 && hist[1][3] != "" {
		t.Errorf("missing epic price should be blank: %v", hist[1])
	}
}
