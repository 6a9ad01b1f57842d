package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local stores the bytes at a path on the host filesystem.
type Local struct {
	common Common

	// Path is the absolute or working-directory-relative file path.
	Path string
}

// NewLocal creates a local controller for path. Label and suffix are
// derived from the path; the identifier is fresh.
func NewLocal(path string) *Local {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return &Local{
		common: Common{
			UUID:   uuid.New(),
			Label:  strings.TrimSuffix(base, ext),
			Suffix: ext,
		},
		Path: path,
	}
}

// LocalFromOther creates a local controller at path carrying the
// other controller's common attributes.
func LocalFromOther(other Controller, path string) *Local {
	c := other.Common()
	if filepath.Ext(path) == "" && c.Suffix != "" {
		path += c.Suffix
	}
	return &Local{common: c, Path: path}
}

// Common implements Controller.
func (l *Local) Common() Common { return l.common }

// Put implements Controller. Parent directories are created as needed;
// the file is replaced atomically via a sibling temp file.
func (l *Local) Put(ctx context.Context, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return NewError("local", "put", l.Path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.Path), "."+filepath.Base(l.Path)+".*")
	if err != nil {
		return NewError("local", "put", l.Path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return NewError("local", "put", l.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return NewError("local", "put", l.Path, err)
	}
	if err := os.Rename(tmp.Name(), l.Path); err != nil {
		return NewError("local", "put", l.Path, err)
	}
	return nil
}

// Get implements Controller.
func (l *Local) Get(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, NewError("local", "get", l.Path, err)
	}
	return f, nil
}
