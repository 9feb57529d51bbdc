package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gnssmon/internal/stationcfg"
)

// SettingsPayload is the wire form of the station settings.
type SettingsPayload struct {
	UseFixedMode bool    `json:"use_fixed_mode"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Altitude     float64 `json:"altitude"`
}

// SettingsPayloadIn is the strict POST schema.
//
// All fields are required (no partial updates) to avoid hidden defaults and
// prevent accidental schema drift.
type SettingsPayloadIn struct {
	UseFixedMode *bool    `json:"use_fixed_mode"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Altitude     *float64 `json:"altitude"`
}

var settingsPostKeys = []string{
	"use_fixed_mode",
	"latitude",
	"longitude",
	"altitude",
}

// decodeStrictObject enforces a closed JSON object: every key in keys
// present exactly once, nothing else, no nulls, no trailing data. Then the
// body is decoded into out.
func decodeStrictObject(body []byte, keys []string, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	// First pass: stream tokens to enforce strict object rules and detect
	// duplicate keys.
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}
	seen := make(map[string]struct{}, len(keys))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return errors.New("invalid json: expected object")
	}

	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return fmt.Errorf("invalid json: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return errors.New("invalid json: expected string key")
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid json: unknown key %q", key)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("invalid json: duplicate key %q", key)
		}
		seen[key] = struct{}{}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("invalid json: %w", err)
		}
		if strings.TrimSpace(string(raw)) == "null" {
			return fmt.Errorf("invalid json: %q cannot be null", key)
		}
	}

	end, err := dec.Token()
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	delim, ok = end.(json.Delim)
	if !ok || delim != '}' {
		return errors.New("invalid json: expected end of object")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid json: trailing data")
	}

	for _, k := range keys {
		if _, ok := seen[k]; !ok {
			return fmt.Errorf("invalid json: missing required key %q", k)
		}
	}

	// Second pass: decode into the typed struct.
	dec2 := json.NewDecoder(bytes.NewReader(body))
	dec2.DisallowUnknownFields()
	if err := dec2.Decode(out); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := dec2.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid json: trailing data")
	}
	return nil
}

func settingsToPayload(s stationcfg.Settings) SettingsPayload {
	return SettingsPayload{
		UseFixedMode: s.UseFixedMode,
		Latitude:     s.Coordinates.Latitude,
		Longitude:    s.Coordinates.Longitude,
		Altitude:     s.Coordinates.Altitude,
	}
}

func validateSettingsPayloadIn(p SettingsPayloadIn) error {
	if *p.Latitude < -90 || *p.Latitude > 90 {
		return errors.New("latitude must be within [-90, 90]")
	}
	if *p.Longitude < -180 || *p.Longitude > 180 {
		return errors.New("longitude must be within [-180, 180]")
	}
	return nil
}

// SettingsResult reports a completed settings write and the follow-up
// receiver restart.
type SettingsResult struct {
	SettingsPayload
	Restarted    bool   `json:"restarted"`
	RestartError string `json:"restart_error,omitempty"`
}

// saveAndRestart applies new settings and restarts the receiver so it picks
// them up. A restart failure is reported, not rolled back: the file is the
// source of truth and the next restart will converge.
func saveAndRestart(r *http.Request, deps Deps, settings stationcfg.Settings) (SettingsResult, error) {
	if err := deps.Settings.Apply(settings); err != nil {
		return SettingsResult{}, err
	}

	out := SettingsResult{SettingsPayload: settingsToPayload(settings)}
	if deps.Restarter != nil {
		if err := deps.Restarter.Restart(r.Context()); err != nil {
			out.RestartError = err.Error()
		} else {
			out.Restarted = true
		}
	}
	return out, nil
}

func settingsHandler(deps Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			settings, err := deps.Settings.Current()
			if err != nil {
				http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, settingsToPayload(settings))

		case http.MethodPost:
			body, ok := readJSONBody(w, r)
			if !ok {
				return
			}
			var p SettingsPayloadIn
			if err := decodeStrictObject(body, settingsPostKeys, &p); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := validateSettingsPayloadIn(p); err != nil {
				http.Error(w, fmt.Sprintf("invalid settings: %v", err), http.StatusBadRequest)
				return
			}

			result, err := saveAndRestart(r, deps, stationcfg.Settings{
				UseFixedMode: *p.UseFixedMode,
				Coordinates: stationcfg.Coordinates{
					Latitude:  *p.Latitude,
					Longitude: *p.Longitude,
					Altitude:  *p.Altitude,
				},
			})
			if err != nil {
				http.Error(w, fmt.Sprintf("save failed: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, result)

		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if ct := strings.TrimSpace(r.Header.Get("Content-Type")); ct != "application/json" {
		http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
		return nil, false
	}
	// Small payloads only; cap to prevent unbounded reads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("read failed: %v", err), http.StatusBadRequest)
		return nil, false
	}
	return body, true
}
