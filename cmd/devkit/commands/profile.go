package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DefaultProfile is used when --profile is not given.
const DefaultProfile = "default"

// Profile is a saved set of connection settings.
type Profile struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

// ProfileStore persists profiles as JSON, readable only by the owner.
type ProfileStore struct {
	Path string
}

// DefaultProfileStore returns the store at ~/.devkit/config.json.
func DefaultProfileStore() (*ProfileStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate home directory: %w", err)
	}
	return &ProfileStore{Path: filepath.Join(home, ".devkit", "config.json")}, nil
}

// Load returns every saved profile. A missing file is an empty set.
func (s *ProfileStore) Load() (map[string]Profile, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Profile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	profiles := map[string]Profile{}
	if err := json.Unmarshal(b, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.Path, err)
	}
	return profiles, nil
}

// Get returns the named profile, or false when it is not saved.
func (s *ProfileStore) Get(name string) (Profile, bool, error) {
	profiles, err := s.Load()
	if err != nil {
		return Profile{}, false, err
	}
	p, ok := profiles[name]
	return p, ok, nil
}

// Save writes p under name, keeping the other profiles.
func (s *ProfileStore) Save(name string, p Profile) error {
	profiles, err := s.Load()
	if err != nil {
		return err
	}
	profiles[name] = p
	b, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	if err := os.WriteFile(s.Path, b, 0o600); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	return nil
}

// RunLogin saves an API key (and optional base URL) as a profile.
func RunLogin(store *ProfileStore, out io.Writer, name, apiKey, baseURL string) error {
	if apiKey == "" {
		return errors.New("api key is required")
	}
	if name == "" {
		name = DefaultProfile
	}
	if err := store.Save(name, Profile{APIKey: apiKey, BaseURL: baseURL}); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "Saved profile %q to %s\n", name, store.Path)
	return err
}

// RunProfiles lists saved profile names with a masked key.
func RunProfiles(store *ProfileStore, out io.Writer) error {
	profiles, err := store.Load()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		p := profiles[n]
		base := p.BaseURL
		if base == "" {
			base = "(default)"
		}
		if _, err := fmt.Fprintf(out, "%s\t%s\t%s\n", n, mask(p.APIKey), base); err != nil {
			return err
		}
	}
	return nil
}
