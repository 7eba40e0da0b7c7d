// Package identity supplies the stable anonymous visitor id that scopes
// quotas and votes. The id is generated once per device and persisted to a
// file; the rest of the system treats it as an opaque string.
package identity

import (
	"fmt"
	"jamsync/internal/structures"
	"os"
	"strings"

	"github.com/google/uuid"
)

// VisitorID is a distinct type so wire can inject it unambiguously.
type VisitorID string

func NewVisitorID(conf *structures.Config) (VisitorID, error) {
	path := conf.Identity.FilePath

	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return VisitorID(id), nil
		}
		// Corrupted file: fall through and mint a fresh identity.
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read identity file %s: %w", path, err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to persist identity file %s: %w", path, err)
	}
	return VisitorID(id), nil
}
