package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
)

// Store is a keyed record store. Implementations must give read-after-write
// consistency: a successful Create or Delete is visible to the next Get from
// any process reading the same backend.
type Store[T ValidatingSpec] interface {
	Create(ctx context.Context, id string, v T) error
	Get(ctx context.Context, id string) (T, error)
	Delete(ctx context.Context, id string) error
	GetAll(ctx context.Context) (map[string]T, error)
}

// FileStore keeps one asset file per record in a directory. Nothing is cached;
// several processes may share the directory.
type FileStore[T ValidatingSpec] struct {
	path string

	mu sync.Mutex
}

func NewFileStore[T ValidatingSpec](path string) (*FileStore[T], error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening store %q: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store path %q is not a directory", path)
	}

	return &FileStore[T]{path: path}, nil
}

func (s *FileStore[T]) Create(_ context.Context, id string, v T) error {
	asset := newAsset(id, v)
	if err := asset.Validate(); err != nil {
		return fmt.Errorf("validating %q: %w", id, err)
	}

	jsonData, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return exclusiveWrite(s.filePath(id), jsonData, 0644)
}

// exclusiveWrite writes data to a temp file then hard links it into place.
// The link fails if the target exists, so concurrent creators cannot both win
// and readers never observe a partially written file.
func exclusiveWrite(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if removeErr := os.Remove(tmp.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
			slog.Warn("failed to remove temp file", "path", tmp.Name(), "error", removeErr)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Link(tmp.Name(), path); err != nil {
		if os.IsExist(err) {
			return ErrExists
		}
		return fmt.Errorf("linking temp file: %w", err)
	}
	return nil
}

func (s *FileStore[T]) Get(_ context.Context, id string) (T, error) {
	var zero T

	asset, err := loadAsset[T](s.filePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	if asset.Id() != id {
		return zero, fmt.Errorf("asset %q has mismatched id %q", s.filePath(id), asset.Id())
	}

	return asset.Spec, nil
}

func (s *FileStore[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("removing %q: %w", id, err)
	}
	return nil
}

func (s *FileStore[T]) GetAll(_ context.Context) (map[string]T, error) {
	return LoadAll[T](s.path)
}

func (s *FileStore[T]) filePath(id string) string {
	return filepath.Join(s.path, fmt.Sprintf("%s.json", EscapeKey(id)))
}

// LoadAll reads every asset below path. Both json and yaml files are accepted.
func LoadAll[T ValidatingSpec](path string) (map[string]T, error) {
	records := map[string]T{}

	err := filepath.Walk(path, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if info.IsDir() || !isAssetFile(path) {
			return nil
		}

		asset, err := loadAsset[T](path)
		if err != nil {
			// The file may have been deleted between the walk and the read.
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}

		// Error if the key is already in use
		if _, ok := records[asset.Id()]; ok {
			return fmt.Errorf("duplicate key detected: %s", asset.Id())
		}

		records[asset.Id()] = asset.Spec
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

func isAssetFile(path string) bool {
	if filepath.Base(path)[0] == '.' {
		return false
	}
	switch filepath.Ext(path) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func loadAsset[T ValidatingSpec](path string) (*Asset[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	// Ignoring close error - file is read-only, error is not actionable
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	asset := &Asset[T]{}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, asset)
	default:
		err = json.Unmarshal(data, asset)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshalling asset %s: %w", filepath.Base(path), err)
	}

	if err := asset.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", filepath.Base(path), err)
	}

	return asset, nil
}
