// Package files accepts uploaded binaries, gives each a unique name and
// returns a URL the client can fetch it from.
package files

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Upload is an incoming file.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store persists uploads and returns their reference URL.
type Store interface {
	Store(ctx context.Context, upload Upload) (string, error)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// objectName derives a unique, path-safe name from the client file name by
// prefixing the upload time in milliseconds and a random fragment.
func objectName(now time.Time, original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "upload"
	}
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), uuid.NewString()[:8], base)
}

func joinURL(prefix, name string) string {
	if prefix == "" {
		return "/" + name
	}
	if strings.Contains(prefix, "://") {
		return strings.TrimRight(prefix, "/") + "/" + name
	}
	return path.Join("/", prefix, name)
}
