// Package file is the byte-stream side of entities: a uniform
// controller contract over heterogeneous storage backends (local
// filesystem, wiki file namespace, S3-compatible object stores,
// in-memory buffers) with cross-backend transfer helpers.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Common is the attribute set every controller carries and that
// survives conversion between backends.
type Common struct {
	// UUID is the logical identifier of the file entity.
	UUID uuid.UUID

	// Label is the human-readable name.
	Label string

	// Suffix is the file extension including the leading dot.
	Suffix string
}

// NormalizeSuffix ensures the suffix carries its leading dot.
func NormalizeSuffix(suffix string) string {
	if suffix == "" || strings.HasPrefix(suffix, ".") {
		return suffix
	}
	return "." + suffix
}

// Controller reads and writes one file's bytes against a backend.
// Implementations are cheap value-like handles; the bytes live in the
// backend.
type Controller interface {
	// Common returns the backend-independent attributes.
	Common() Common

	// Put writes the supplied stream into the backend, replacing any
	// previous content.
	Put(ctx context.Context, r io.Reader) error

	// Get opens the stored bytes for reading. The caller owns the
	// returned reader and must close it.
	Get(ctx context.Context) (io.ReadCloser, error)
}

// Error wraps a backend IO failure with the backend and operation.
type Error struct {
	Backend string
	Op      string
	Name    string
	err     error
}

// NewError creates a file Error.
func NewError(backend, op, name string, err error) *Error {
	return &Error{Backend: backend, Op: op, Name: name, err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("file %s: %s %q: %v", e.Backend, e.Op, e.Name, e.err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.err }

// IsFileError reports whether err is a file backend failure.
func IsFileError(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}

// GetTo streams the controller's content into w and returns the number
// of bytes copied.
func GetTo(ctx context.Context, c Controller, w io.Writer) (int64, error) {
	r, err := c.Get(ctx)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return io.Copy(w, r)
}

// PutFrom copies the content of src into dst.
func PutFrom(ctx context.Context, dst, src Controller) error {
	r, err := src.Get(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	return dst.Put(ctx, r)
}
