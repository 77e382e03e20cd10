package export

import (
	"fmt"
	"io"
	"sort"

	"game-price-tracker/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	StoresSheet  = "Stores"
	HistorySheet = "History"
)

var (
	storesHeader = []interface{}{
		"key", "title",
		"steam_current", "steam_normal", "steam_available",
		"epic_current", "epic_normal", "epic_available",
		"updated_at", "error",
	}
	historyHeader = []interface{}{"key", "month", "steam", "epic"}
)

// WriteWorkbook renders the aggregate as an xlsx workbook with one row per
// title on the Stores sheet and one row per title-month on the History sheet.
func WriteWorkbook(w io.Writer, data models.PriceData) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", StoresSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(HistorySheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	storeRows := [][]interface{}{storesHeader}
	historyRows := [][]interface{}{historyHeader}
	for _, key := range keys {
		res := data[key]
		var stores models.Stores
		if res.Stores != nil {
			stores = *res.Stores
		}
		storeRows = append(storeRows, []interface{}{
			key, res.Title,
			cell(stores.Steam.Current), cell(stores.Steam.Normal), stores.Steam.Available,
			cell(stores.Epic.Current), cell(stores.Epic.Normal), stores.Epic.Available,
			res.UpdatedAt, res.Error,
		})
		for _, b := range res.History {
			historyRows = append(historyRows, []interface{}{key, b.Month, cell(b.Steam), cell(b.Epic)})
		}
	}

	for sheet, rows := range map[string][][]interface{}{StoresSheet: storeRows, HistorySheet: historyRows} {
		if err := writeRows(f, sheet, rows); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
		last, _ := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, addr, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// cell leaves unknown prices blank instead of writing zero.
func cell(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
