// Package profile stores the registered user identity used to pre-fill
// alert drafts.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Profile is the locally registered identity.
type Profile struct {
	UserName  string `json:"userName"`
	UserPhone string `json:"userPhone"`
}

// Store persists the user profile.
type Store interface {
	// Load returns the stored profile. A store with no saved profile
	// returns the zero Profile and no error.
	Load() (Profile, error)

	// Save persists the profile, replacing any previous one.
	Save(p Profile) error
}

// FileStore keeps the profile as a JSON file on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed profile store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (Profile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Profile{}, nil
		}
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile: %w", err)
	}
	return p, nil
}

func (s *FileStore) Save(p Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating profile dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}
