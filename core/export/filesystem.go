package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/relabs-tech/shimmer-console/core/logger"
)

// Filesystem is the export driver writing into a local folder
type Filesystem struct {
	baseFolder string
}

// NewFilesystem returns a new Filesystem driver. The base folder is created if needed.
func NewFilesystem(baseFolder string) (*Filesystem, error) {
	if baseFolder == "" {
		return nil, fmt.Errorf("BasePath must not be empty")
	}
	if err := os.MkdirAll(baseFolder, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create export folder %s: %w", baseFolder, err)
	}
	return &Filesystem{baseFolder: baseFolder}, nil
}

// Put writes data into the file key below the base folder
func (f *Filesystem) Put(ctx context.Context, key string, data []byte) error {
	if key == "" || strings.Contains(key, "..") {
		return fmt.Errorf("invalid export key %q", key)
	}
	p := f.Location(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", p, err)
	}
	logger.FromContext(ctx).Debugln("exported", len(data), "bytes to", p)
	return nil
}

// Location returns the file path for key
func (f *Filesystem) Location(key string) string {
	return filepath.Join(f.baseFolder, filepath.FromSlash(key))
}
