package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Marker persists the timestamp of the last bar an order was placed on.
type Marker struct {
	path string
}

type markerFile struct {
	LastTradeTime string `json:"last_trade_time"`
}

func NewMarker(path string) *Marker {
	return &Marker{path: path}
}

// Load returns the zero time when no marker has been written yet.
func (m *Marker) Load() (time.Time, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	var mf markerFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return time.Time{}, fmt.Errorf("marker %s: %w", m.path, err)
	}
	if mf.LastTradeTime == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, mf.LastTradeTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("marker %s: %w", m.path, err)
	}
	return t, nil
}

// Save overwrites the marker atomically.
func (m *Marker) Save(t time.Time) error {
	data, err := json.Marshal(markerFile{LastTradeTime: t.UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return err
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".marker-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, m.path)
}
