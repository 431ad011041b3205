// Package route defines patrol routes and checkpoint proximity checks.
//
// Routes are server-authoritative but cached on the device as a YAML file
// so checkpoint verification keeps working offline.
package route

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Checkpoint is a geofenced point a guard must scan during a patrol.
type Checkpoint struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	// RadiusM is the allowed distance from the checkpoint in meters.
	RadiusM float64 `json:"radius_m" yaml:"radius_m"`
}

// Route is an ordered set of checkpoints at one site.
type Route struct {
	ID          string       `json:"id" yaml:"id"`
	SiteID      string       `json:"site_id" yaml:"site_id"`
	Name        string       `json:"name" yaml:"name"`
	Checkpoints []Checkpoint `json:"checkpoints" yaml:"checkpoints"`
}

// Checkpoint looks up a checkpoint on the route by ID.
func (r *Route) Checkpoint(id string) (Checkpoint, bool) {
	for _, cp := range r.Checkpoints {
		if cp.ID == id {
			return cp, true
		}
	}
	return Checkpoint{}, false
}

// Validate checks required fields on the route and its checkpoints.
func (r *Route) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("route id is required")
	}
	if len(r.Checkpoints) == 0 {
		return fmt.Errorf("route %s has no checkpoints", r.ID)
	}
	for _, cp := range r.Checkpoints {
		if cp.ID == "" {
			return fmt.Errorf("route %s: checkpoint id is required", r.ID)
		}
		if cp.Latitude < -90 || cp.Latitude > 90 {
			return fmt.Errorf("route %s: checkpoint %s: latitude out of range", r.ID, cp.ID)
		}
		if cp.Longitude < -180 || cp.Longitude > 180 {
			return fmt.Errorf("route %s: checkpoint %s: longitude out of range", r.ID, cp.ID)
		}
	}
	return nil
}

// routeFile is the on-disk cache layout.
type routeFile struct {
	Routes []Route `yaml:"routes"`
}

// LoadFile reads cached routes from a YAML file.
func LoadFile(path string) ([]Route, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}

	var rf routeFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("parse routes file: %w", err)
	}

	for i := range rf.Routes {
		if err := rf.Routes[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid routes file: %w", err)
		}
	}
	return rf.Routes, nil
}

// SaveFile writes routes to the YAML cache, replacing any existing file.
func SaveFile(path string, routes []Route) error {
	raw, err := yaml.Marshal(routeFile{Routes: routes})
	if err != nil {
		return fmt.Errorf("marshal routes: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write routes file: %w", err)
	}
	return nil
}

// Find returns the route with the given ID.
func Find(routes []Route, id string) (*Route, bool) {
	for i := range routes {
		if routes[i].ID == id {
			return &routes[i], true
		}
	}
	return nil, false
}

const earthRadiusM = 6371000.0

// DistanceM returns the haversine great-circle distance in meters between
// two coordinates.
func DistanceM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// InRange reports whether a position is within the checkpoint's radius,
// and the measured distance.
func (c Checkpoint) InRange(lat, lon float64) (bool, float64) {
	d := DistanceM(c.Latitude, c.Longitude, lat, lon)
	return d <= c.RadiusM, d
}
