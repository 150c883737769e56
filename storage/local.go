package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/cppla/uploader/models"
)

// ErrEmptyDir is returned when a Local store is created without a directory.
var ErrEmptyDir = errors.New("storage: upload directory is empty")

// Local stores uploaded files in a single flat directory.
type Local struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

// NewLocal creates a store writing into dir; stored files are addressed
// publicly as urlPrefix + "/" + name.
func NewLocal(dir, urlPrefix string) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrEmptyDir
	}
	return &Local{
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		now:       time.Now,
	}, nil
}

// Dir returns the directory files are written to.
func (l *Local) Dir() string {
	return l.dir
}

// Save writes the uploaded part to disk under a freshly generated name.
// A partially written file is removed when the copy fails.
func (l *Local) Save(fh *multipart.FileHeader) (models.UploadedFile, error) {
	if err := EnsureDir(l.dir); err != nil {
		return models.UploadedFile{}, err
	}

	src, err := fh.Open()
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("open uploaded part: %w", err)
	}
	defer src.Close()

	name := GenerateName(fh.Filename, l.now())
	dstPath := filepath.Join(l.dir, name)

	// O_EXCL: a name collision fails the request instead of overwriting another upload
	out, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("create %s: %w", name, err)
	}

	written, err := io.Copy(out, src)
	if err == nil {
		err = out.Close()
	} else {
		_ = out.Close()
	}
	if err != nil {
		_ = os.Remove(dstPath)
		return models.UploadedFile{}, fmt.Errorf("write %s: %w", name, err)
	}

	return models.UploadedFile{
		Name:         name,
		OriginalName: fh.Filename,
		Size:         written,
		DiskPath:     dstPath,
		URL:          l.URL(name),
	}, nil
}

// URL returns the public, escaped path a stored file is served under.
func (l *Local) URL(name string) string {
	return strings.TrimRight(l.urlPrefix, "/") + "/" + url.PathEscape(name)
}

// EnsureDir creates dir and any missing parents. An existing directory is not an error.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}
	return nil
}

// GenerateName builds the storage name {epochMillis}-{sanitized original}.
func GenerateName(original string, now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), SanitizeFilename(original))
}

// SanitizeFilename reduces a client supplied filename to a single path
// element with no separators, traversal elements or control characters.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
