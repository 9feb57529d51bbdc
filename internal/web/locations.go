package web

import (
	"fmt"
	"net/http"
	"strings"

	"gnssmon/internal/stationcfg"
)

type LocationsResponse struct {
	Locations []stationcfg.Location `json:"locations"`
	// Matched names the bookmark whose coordinates match the current
	// station settings, when one does.
	Matched string `json:"matched,omitempty"`
}

// LocationIn is the strict add schema.
type LocationIn struct {
	Name      *string  `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
}

var locationPostKeys = []string{
	"name",
	"latitude",
	"longitude",
	"altitude",
}

// LocationApplyIn is the strict apply schema.
type LocationApplyIn struct {
	Name *string `json:"name"`
}

var locationApplyKeys = []string{"name"}

func locationsHandler(deps Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			list, err := deps.Locations.List()
			if err != nil {
				http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
				return
			}
			if list == nil {
				list = []stationcfg.Location{}
			}
			resp := LocationsResponse{Locations: list}
			if settings, err := deps.Settings.Current(); err == nil {
				if loc, ok, err := deps.Locations.Find(settings.Coordinates.Latitude, settings.Coordinates.Longitude, settings.Coordinates.Altitude); err == nil && ok {
					resp.Matched = loc.Name
				}
			}
			writeJSON(w, resp)

		case http.MethodPost:
			body, ok := readJSONBody(w, r)
			if !ok {
				return
			}
			var p LocationIn
			if err := decodeStrictObject(body, locationPostKeys, &p); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			loc := stationcfg.Location{
				Name:      strings.TrimSpace(*p.Name),
				Latitude:  *p.Latitude,
				Longitude: *p.Longitude,
				Altitude:  *p.Altitude,
			}
			if loc.Name == "" {
				http.Error(w, "name must be non-empty", http.StatusBadRequest)
				return
			}
			if err := deps.Locations.Add(loc); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(w, loc)

		case http.MethodDelete:
			name := strings.TrimSpace(r.URL.Query().Get("name"))
			if name == "" {
				http.Error(w, "name query parameter is required", http.StatusBadRequest)
				return
			}
			if err := deps.Locations.Remove(name); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{\"ok\":true}\n"))

		default:
			w.Header().Set("Allow", "GET, POST, DELETE")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

// locationsApplyHandler copies a bookmark's coordinates into the station
// settings, keeping the fixed-mode flag as it is, then restarts the
// receiver.
func locationsApplyHandler(deps Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, ok := readJSONBody(w, r)
		if !ok {
			return
		}
		var p LocationApplyIn
		if err := decodeStrictObject(body, locationApplyKeys, &p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		name := strings.TrimSpace(*p.Name)

		list, err := deps.Locations.List()
		if err != nil {
			http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
			return
		}
		var found *stationcfg.Location
		for i := range list {
			if list[i].Name == name {
				found = &list[i]
				break
			}
		}
		if found == nil {
			http.Error(w, fmt.Sprintf("location %q not found", name), http.StatusNotFound)
			return
		}

		settings, err := deps.Settings.Current()
		if err != nil {
			http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
			return
		}
		settings.Coordinates = stationcfg.Coordinates{
			Latitude:  found.Latitude,
			Longitude: found.Longitude,
			Altitude:  found.Altitude,
		}

		result, err := saveAndRestart(r, deps, settings)
		if err != nil {
			http.Error(w, fmt.Sprintf("save failed: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, result)
	})
}
