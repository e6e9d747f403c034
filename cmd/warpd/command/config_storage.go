package command

import (
	"fmt"
	"os"
)

type StorageBackend string

const (
	StorageBackendKV   StorageBackend = "kv"
	StorageBackendFile StorageBackend = "file"
)

// StorageConfig chooses where the warp directory lives. Every server on the
// network must point at the same one.
type StorageConfig struct {
	Backend   StorageBackend `json:"backend"`
	WarpsPath string         `json:"warps_path"`
	Bucket    string         `json:"kv_bucket"`
}

func (c *StorageConfig) validate() error {
	switch c.Backend {
	case "", StorageBackendKV:
		return nil
	case StorageBackendFile:
		if c.WarpsPath == "" {
			return fmt.Errorf("storage: warps_path is required for the file backend")
		}
		if _, err := os.Stat(c.WarpsPath); err != nil {
			return fmt.Errorf("storage: invalid warps_path %q: %w", c.WarpsPath, err)
		}
		return nil
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Backend)
	}
}

func (c *StorageConfig) warpsPath() string {
	if c.Backend != StorageBackendFile {
		return ""
	}
	return c.WarpsPath
}
