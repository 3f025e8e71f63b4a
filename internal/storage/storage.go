// Package storage keeps uploaded work item attachments on local disk.
//
// Each upload gets a fresh name, "<unix-millis>-<xid>-<base name>", so two
// uploads of "notes.txt" never overwrite each other. The database stores the
// public path ("/uploads/<name>"), which is also the URL the router serves the
// blob under.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/xid"
)

// URLPrefix is the public path prefix of every stored blob.
const URLPrefix = "/uploads/"

// maxBaseName bounds the original file name kept in the stored name.
const maxBaseName = 100

// ErrInvalidPath is returned by Remove for paths outside the upload directory.
var ErrInvalidPath = errors.New("storage: path is not an upload path")

// Disk stores blobs in a single flat directory.
type Disk struct {
	dir string
	now func() time.Time
}

// NewDisk creates dir if needed and returns a store rooted there.
func NewDisk(dir string) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("storage: upload directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating upload directory %s: %w", dir, err)
	}
	return &Disk{dir: dir, now: time.Now}, nil
}

// Dir returns the directory blobs are written to.
func (d *Disk) Dir() string {
	return d.dir
}

// Save copies r to a new file named after original and returns its public
// path. A partially written file is removed if the copy fails.
func (d *Disk) Save(ctx context.Context, r io.Reader, original string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d-%s-%s", d.now().UnixMilli(), xid.New().String(), SanitizeName(original))
	full := filepath.Join(d.dir, name)

	// O_EXCL: a name collision is a bug, never an overwrite.
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: creating %s: %w", name, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("storage: writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("storage: closing %s: %w", name, err)
	}

	return URLPrefix + name, nil
}

// Remove deletes the blob behind a public path returned by Save.
// A blob that is already gone is not an error.
func (d *Disk) Remove(publicPath string) error {
	name, ok := strings.CutPrefix(publicPath, URLPrefix)
	if !ok || name == "" || name != path.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidPath, publicPath)
	}

	if err := os.Remove(filepath.Join(d.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: removing %s: %w", name, err)
	}
	return nil
}

// SanitizeName reduces a client-supplied file name to a safe base name:
// directories are stripped, control characters dropped, colons replaced,
// and the result truncated. An empty result becomes "file".
func SanitizeName(original string) string {
	// Browsers on Windows may send "C:\Users\me\notes.txt".
	original = strings.ReplaceAll(original, `\`, "/")
	base := path.Base(original)
	if base == "." || base == ".." || base == "/" {
		return "file"
	}

	base = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return -1
		case r == '/' || r == ':':
			return '_'
		}
		return r
	}, base)
	base = strings.TrimSpace(base)

	if base == "" || base == "." || base == ".." {
		return "file"
	}
	return truncateUTF8(base, maxBaseName)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
