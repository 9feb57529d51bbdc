// Package stationcfg reads and writes the receiver service's configuration
// files: basestation.json (fixed-position mode and its coordinates) and
// known-locations.json (named coordinate bookmarks). The key casing matches
// what the receiver service expects.
package stationcfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Coordinates is a geodetic triple in the station settings schema.
type Coordinates struct {
	Latitude  float64 `json:"LATITUDE"`
	Longitude float64 `json:"LONGITUDE"`
	Altitude  float64 `json:"ALTITUDE"`
}

// Settings mirrors basestation.json.
type Settings struct {
	UseFixedMode bool        `json:"USE_FIXED_MODE"`
	Coordinates  Coordinates `json:"COORDINATES"`
}

// Store persists Settings at a fixed path.
type Store struct {
	Path string
}

// Current reads the settings file. A missing file yields the defaults
// (fixed mode off, zero coordinates), not an error.
func (s Store) Current() (Settings, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	var out Settings
	if err := json.Unmarshal(b, &out); err != nil {
		return Settings{}, fmt.Errorf("stationcfg: parse %s: %w", s.Path, err)
	}
	return out, nil
}

// Apply rewrites the settings file atomically.
func (s Store) Apply(settings Settings) error {
	b, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.Path, append(b, '\n'))
}

// Location is one named bookmark in known-locations.json.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

type locationsFile struct {
	Locations []Location `json:"locations"`
}

// Locations persists the bookmark list at a fixed path.
type Locations struct {
	Path string
}

// Matching tolerances for Find. Altitude is much looser than the angles:
// repeated survey-ins of the same physical spot wander vertically first.
const (
	latLonEpsilon   = 1e-6
	altitudeEpsilon = 0.1
)

// List reads all bookmarks. A missing file yields an empty list.
func (l Locations) List() ([]Location, error) {
	b, err := os.ReadFile(l.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f locationsFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("stationcfg: parse %s: %w", l.Path, err)
	}
	return f.Locations, nil
}

// Add appends a bookmark. The name must be non-empty and unused.
func (l Locations) Add(loc Location) error {
	loc.Name = strings.TrimSpace(loc.Name)
	if loc.Name == "" {
		return errors.New("stationcfg: location name is required")
	}
	list, err := l.List()
	if err != nil {
		return err
	}
	for _, have := range list {
		if have.Name == loc.Name {
			return fmt.Errorf("stationcfg: location %q already exists", loc.Name)
		}
	}
	return l.save(append(list, loc))
}

// Remove deletes the bookmark with the given name.
func (l Locations) Remove(name string) error {
	name = strings.TrimSpace(name)
	list, err := l.List()
	if err != nil {
		return err
	}
	out := list[:0]
	found := false
	for _, have := range list {
		if have.Name == name {
			found = true
			continue
		}
		out = append(out, have)
	}
	if !found {
		return fmt.Errorf("stationcfg: location %q not found", name)
	}
	return l.save(out)
}

// Find returns the first bookmark whose coordinates match within the
// tolerances above.
func (l Locations) Find(lat, lon, alt float64) (Location, bool, error) {
	list, err := l.List()
	if err != nil {
		return Location{}, false, err
	}
	for _, have := range list {
		if math.Abs(have.Latitude-lat) < latLonEpsilon &&
			math.Abs(have.Longitude-lon) < latLonEpsilon &&
			math.Abs(have.Altitude-alt) < altitudeEpsilon {
			return have, true, nil
		}
	}
	return Location{}, false, nil
}

func (l Locations) save(list []Location) error {
	if list == nil {
		list = []Location{}
	}
	b, err := json.MarshalIndent(locationsFile{Locations: list}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(l.Path, append(b, '\n'))
}

// writeFileAtomic writes via a temp file in the target directory so the
// rename is atomic and a crash never leaves a half-written file behind.
func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
