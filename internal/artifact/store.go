package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"game-price-tracker/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Store persists the aggregate as price-data.json plus a script file that
// assigns the same object to a browser global.
type Store struct {
	JSONPath string
	JSPath   string
	Global   string
}

// LoadRaw returns the previous aggregate with every title left undecoded.
// A missing or empty file is an empty baseline, not an error.
func (s *Store) LoadRaw() (models.RawPriceData, error) {
	data, err := os.ReadFile(s.JSONPath)
	if errors.Is(err, fs.ErrNotExist) {
		return models.RawPriceData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.JSONPath, err)
	}
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return models.RawPriceData{}, nil
	}

	var existing models.RawPriceData
	if err := json.Unmarshal(data, &existing); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.JSONPath, err)
	}
	if existing == nil {
		existing = models.RawPriceData{}
	}
	return existing, nil
}

// Load decodes the aggregate for readers. Entries that do not fit
// GameResult are left out rather than failing the whole file.
func (s *Store) Load() (models.PriceData, error) {
	raw, err := s.LoadRaw()
	if err != nil {
		return nil, err
	}
	data := make(models.PriceData, len(raw))
	for key, entry := range raw {
		var res models.GameResult
		if err := json.Unmarshal(entry, &res); err != nil {
			continue
		}
		data[key] = res
	}
	return data, nil
}

// SaveRaw writes both artifacts. Keys are sorted and the JSON is indented
// with two spaces.
func (s *Store) SaveRaw(data models.RawPriceData) error {
	if data == nil {
		data = models.RawPriceData{}
	}
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode price data: %w", err)
	}
	if err := writeFileAtomic(s.JSONPath, body); err != nil {
		return err
	}
	if s.JSPath == "" {
		return nil
	}
	global := s.Global
	if global == "" {
		global = "ALIVE_PRICE_DATA"
	}
	script := fmt.Sprintf("window.%s = %s;\n", global, body)
	return writeFileAtomic(s.JSPath, []byte(script))
}

func (s *Store) Save(data models.PriceData) error {
	raw := make(models.RawPriceData, len(data))
	for key, res := range data {
		entry, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		raw[key] = entry
	}
	return s.SaveRaw(raw)
}

// ModTime reports when the JSON artifact last changed; zero if it does not exist.
func (s *Store) ModTime() (time.Time, error) {
	info, err := os.Stat(s.JSONPath)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", s.JSONPath, err)
	}
	return info.ModTime(), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
