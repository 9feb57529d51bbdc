package stationcfg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStore_MissingFileYieldsDefaults(t *testing.T) {
	s := Store{Path: filepath.Join(t.TempDir(), "basestation.json")}
	got, err := s.Current()
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if got != (Settings{}) {
		t.Fatalf("got %+v want zero settings", got)
	}
}

func TestStore_ApplyRoundTrip(t *testing.T) {
	s := Store{Path: filepath.Join(t.TempDir(), "basestation.json")}
	want := Settings{
		UseFixedMode: true,
		Coordinates:  Coordinates{Latitude: 37.4192, Longitude: -122.057, Altitude: 10.0},
	}
	if err := s.Apply(want); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	got, err := s.Current()
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestStore_WritesReceiverSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "basestation.json")
	s := Store{Path: path}
	if err := s.Apply(Settings{UseFixedMode: true}); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	for _, key := range []string{"USE_FIXED_MODE", "COORDINATES", "LATITUDE", "LONGITUDE", "ALTITUDE"} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("file is missing key %q:\n%s", key, b)
		}
	}
	if !strings.HasSuffix(string(b), "\n") {
		t.Fatalf("file does not end with a newline")
	}
}

func TestStore_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "basestation.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if _, err := (Store{Path: path}).Current(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func testLocations(t *testing.T) Locations {
	t.Helper()
	return Locations{Path: filepath.Join(t.TempDir(), "known-locations.json")}
}

func TestLocations_MissingFileIsEmpty(t *testing.T) {
	list, err := testLocations(t).List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("got %d locations, want 0", len(list))
	}
}

func TestLocations_AddListRemove(t *testing.T) {
	l := testLocations(t)
	north := Location{Name: "north field", Latitude: 37.4192, Longitude: -122.057, Altitude: 10.0}
	barn := Location{Name: "barn", Latitude: 37.42, Longitude: -122.06, Altitude: 12.5}

	if err := l.Add(north); err != nil {
		t.Fatalf("Add(north) error: %v", err)
	}
	if err := l.Add(barn); err != nil {
		t.Fatalf("Add(barn) error: %v", err)
	}

	list, err := l.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 2 || list[0] != north || list[1] != barn {
		t.Fatalf("list=%+v", list)
	}

	if err := l.Remove("north field"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	list, err = l.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 1 || list[0] != barn {
		t.Fatalf("after remove list=%+v", list)
	}
}

func TestLocations_AddRejectsDuplicateAndEmptyName(t *testing.T) {
	l := testLocations(t)
	if err := l.Add(Location{Name: "gate"}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := l.Add(Location{Name: "gate"}); err == nil {
		t.Fatalf("duplicate name accepted")
	}
	if err := l.Add(Location{Name: "  "}); err == nil {
		t.Fatalf("blank name accepted")
	}
}

func TestLocations_RemoveUnknownIsAnError(t *testing.T) {
	if err := testLocations(t).Remove("nowhere"); err == nil {
		t.Fatalf("unknown remove accepted")
	}
}

func TestLocations_FindEpsilon(t *testing.T) {
	l := testLocations(t)
	if err := l.Add(Location{Name: "north field", Latitude: 37.4192, Longitude: -122.057, Altitude: 10.0}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	cases := []struct {
		name          string
		lat, lon, alt float64
		match         bool
	}{
		{"Exact", 37.4192, -122.057, 10.0, true},
		{"WithinAllEpsilons", 37.4192005, -122.0570005, 10.09, true},
		{"LatitudeTooFar", 37.419202, -122.057, 10.0, false},
		{"LongitudeTooFar", 37.4192, -122.057002, 10.0, false},
		{"AltitudeTooFar", 37.4192, -122.057, 10.11, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := l.Find(tc.lat, tc.lon, tc.alt)
			if err != nil {
				t.Fatalf("Find() error: %v", err)
			}
			if ok != tc.match {
				t.Fatalf("match=%v want %v", ok, tc.match)
			}
			if ok && got.Name != "north field" {
				t.Fatalf("name=%q want %q", got.Name, "north field")
			}
		})
	}
}
