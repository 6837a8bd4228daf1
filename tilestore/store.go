// Package tilestore loads geographic tiles from CSV into region records
// and owns all region and label data. Region ids are dense indices in CSV
// row order; the spatial grid and classifier hold ids only, never copies,
// so a store must outlive the structures built over it.
package tilestore

import (
	"errors"

	"github.com/ogpredict/geofence/geomodel"
)

// ErrNoHeader marks a CSV file that is present but empty: zero regions
// loaded, distinct from an unreadable file for diagnostics.
var ErrNoHeader = errors.New("tilestore: csv file has no header row")

// Store is the canonical list of regions plus, for territory tiles, an
// aligned label per region. An empty label means unclassified land.
type Store struct {
	regions []geomodel.Region
	labels  []string
}

// Len returns the number of regions.
func (s *Store) Len() int {
	return len(s.regions)
}

// Region returns the region for a handle. Callers must not mutate the
// returned corner ring.
func (s *Store) Region(id geomodel.RegionID) geomodel.Region {
	return s.regions[id]
}

// Regions exposes the full region list in CSV row order, for index builds.
// Read-only.
func (s *Store) Regions() []geomodel.Region {
	return s.regions
}

// Label returns the territory label for a region, or the empty string.
func (s *Store) Label(id geomodel.RegionID) string {
	if int(id) >= len(s.labels) {
		return ""
	}
	return s.labels[id]
}

// Append adds one region without disturbing existing handles; used for
// interactive single-POI addition. Returns the new region's id.
func (s *Store) Append(r geomodel.Region, label string) geomodel.RegionID {
	id := geomodel.RegionID(len(s.regions))
	s.regions = append(s.regions, r)
	s.labels = append(s.labels, label)
	return id
}
