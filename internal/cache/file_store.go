package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileStore keeps one JSON file per date, named YYYY-MM-DD.json, in dir.
type FileStore struct {
	dir string
	log *slog.Logger
}

func NewFileStore(dir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

// Load also reads files holding only the results array; their updatedAt is the file's mtime.
func (f *FileStore) Load(_ context.Context, date string) (*model.DailySnapshot, error) {
	path := f.path(date)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var results []model.MosqueResult
		if err = json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		s := &model.DailySnapshot{Date: date, Results: results}
		if info, err := os.Stat(path); err == nil {
			s.UpdatedAt = info.ModTime()
		}
		f.log.Debug("read results-only snapshot file.", slog.String("date", date))
		return s, nil
	}

	var s model.DailySnapshot
	if err = json.Unmarshal(trimmed, &s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if s.Date == "" {
		s.Date = date
	}
	return &s, nil
}

// Save writes through a temporary file and a rename, so readers never see a partial file.
func (f *FileStore) Save(_ context.Context, s *model.DailySnapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, s.Date+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), f.path(s.Date)); err != nil {
		return err
	}
	f.log.Debug("snapshot saved to file.", slog.String("date", s.Date))
	return nil
}

func (f *FileStore) path(date string) string {
	return filepath.Join(f.dir, date+".json")
}
