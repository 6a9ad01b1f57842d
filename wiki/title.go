package wiki

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Well-known namespaces of an OSW instance.
const (
	NamespaceItem     = "Item"
	NamespaceCategory = "Category"
	NamespaceProperty = "Property"
	NamespaceFile     = "File"
)

// OSWID returns the OSW-ID for a UUID: "OSW" followed by the 32
// lowercase hex digits of the UUID with dashes removed.
//
// Example: 2ea5b605-c91f-4e5a-9559-3dff79fdd4a5
// becomes OSW2ea5b605c91f4e5a95593dff79fdd4a5.
func OSWID(id uuid.UUID) string {
	return "OSW" + strings.ReplaceAll(id.String(), "-", "")
}

// UUIDFromOSWID recovers the UUID encoded in an OSW-ID.
func UUIDFromOSWID(oswID string) (uuid.UUID, error) {
	hex := strings.TrimPrefix(oswID, "OSW")
	if len(hex) != 32 {
		return uuid.Nil, fmt.Errorf("invalid OSW-ID %q: expected 32 hex digits, got %d", oswID, len(hex))
	}
	id, err := uuid.Parse(hex)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid OSW-ID %q: %w", oswID, err)
	}
	return id, nil
}

// SplitFullTitle splits "Namespace:Title" into its parts. Titles may
// themselves contain colons; only the first one separates the
// namespace.
func SplitFullTitle(fullTitle string) (namespace, title string, err error) {
	idx := strings.Index(fullTitle, ":")
	if idx <= 0 || idx == len(fullTitle)-1 {
		return "", "", fmt.Errorf("full title %q is not of the form Namespace:Title", fullTitle)
	}
	return fullTitle[:idx], fullTitle[idx+1:], nil
}

// JoinFullTitle assembles a full page title from namespace and title.
func JoinFullTitle(namespace, title string) string {
	return namespace + ":" + title
}
