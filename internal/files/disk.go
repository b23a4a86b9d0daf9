package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// DiskStore writes uploads into a local directory that is served statically
// under URLPrefix.
type DiskStore struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir, urlPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, urlPrefix: urlPrefix, now: time.Now}, nil
}

// Dir is the directory uploads are written to.
func (s *DiskStore) Dir() string { return s.dir }

// Store copies the upload to disk and returns its public path.
func (s *DiskStore) Store(ctx context.Context, upload Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := objectName(s.now(), upload.Name)
	dst := filepath.Join(s.dir, name)

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, upload.Body); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return joinURL(s.urlPrefix, name), nil
}
