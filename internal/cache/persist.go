package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// FileStore persists the installed snapshot as JSON so a restarted process
// can serve the previous generation while the first refresh runs.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type persistedSnapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	Items       []Item    `json:"items"`
}

func (fs *FileStore) Save(items []Item, generatedAt time.Time) error {
	data, err := json.MarshalIndent(persistedSnapshot{GeneratedAt: generatedAt, Items: items}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(fs.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return nil
}

func (fs *FileStore) Load() ([]Item, time.Time, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	if len(data) == 0 {
		return nil, time.Time{}, nil
	}

	var snap persistedSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap.Items, snap.GeneratedAt, nil
}
