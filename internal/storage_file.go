package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/lychee-technology/norma"
)

const defaultLockTimeout = 1 * time.Second

// FileStorage stores one JSON or YAML document per storage key in a
// directory. Saves go through a temp file renamed over the target, guarded
// by a per-key lock file, so concurrent writers cannot tear a document and
// readers always see a complete one.
type FileStorage struct {
	dir         string
	format      string
	lockTimeout time.Duration
}

func NewFileStorage(cfg norma.FileConfig) (*FileStorage, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("file storage requires a directory")
	}
	format := cfg.Format
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "yaml" {
		return nil, fmt.Errorf("unsupported file storage format '%s'", format)
	}
	if err := os.MkdirAll(cfg.Directory, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &FileStorage{dir: cfg.Directory, format: format, lockTimeout: lockTimeout}, nil
}

func (s *FileStorage) Load(_ context.Context, key string) (norma.NormalizedRepresentation, error) {
	path := s.documentPath(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return norma.NormalizedRepresentation{}, nil
		}
		return nil, norma.NewStorageError(fmt.Sprintf("failed to read settings file %s", path), err)
	}

	data := make(map[string]any)
	switch s.format {
	case "yaml":
		err = yaml.Unmarshal(raw, &data)
	default:
		err = json.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, norma.NewStorageError(fmt.Sprintf("failed to parse settings file %s", path), err)
	}
	return norma.NormalizedRepresentation(data), nil
}

func (s *FileStorage) Save(ctx context.Context, key string, data norma.NormalizedRepresentation) error {
	var (
		raw []byte
		err error
	)
	switch s.format {
	case "yaml":
		raw, err = yaml.Marshal(map[string]any(data))
	default:
		raw, err = json.MarshalIndent(map[string]any(data), "", "  ")
	}
	if err != nil {
		return norma.NewStorageError("failed to serialize settings document", err)
	}

	path := s.documentPath(key)
	fileLock := flock.New(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return norma.NewStorageError(fmt.Sprintf("failed to acquire lock for %s", path), err)
	}
	if !locked {
		return norma.NewStorageError(fmt.Sprintf("failed to acquire lock for %s: timeout after %v", path, s.lockTimeout), nil)
	}
	defer fileLock.Unlock()

	return s.writeAtomic(path, raw)
}

// writeAtomic writes through a temp file in the same directory and renames
// it over the target.
func (s *FileStorage) writeAtomic(path string, raw []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return norma.NewStorageError("failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return norma.NewStorageError("failed to write settings document", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return norma.NewStorageError("failed to close settings document", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return norma.NewStorageError(fmt.Sprintf("failed to replace settings file %s", path), err)
	}
	return nil
}

func (s *FileStorage) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, norma.NewStorageError("failed to list storage directory", err)
	}
	ext := "." + s.extension()
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ext))
	}
	return keys, nil
}

func (s *FileStorage) Delete(_ context.Context, key string) error {
	err := os.Remove(s.documentPath(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return norma.NewStorageError(fmt.Sprintf("failed to delete settings for key '%s'", key), err)
	}
	return nil
}

func (s *FileStorage) documentPath(key string) string {
	safe := strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(s.dir, safe+"."+s.extension())
}

func (s *FileStorage) extension() string {
	if s.format == "yaml" {
		return "yaml"
	}
	return "json"
}
