// Package classifier matches sampled ground-track points against a loaded
// tile set: which territory or point-of-interest tile, if any, contains each
// sample. Matching runs over a per-load immutable index, fanned out across a
// small worker pool.
package classifier

import (
	"fmt"

	"github.com/ogpredict/geofence/geomodel"
	"github.com/ogpredict/geofence/tilegrid"
	"github.com/ogpredict/geofence/tilestore"
)

// Index bundles one loaded tile set with the spatial grid built over it.
// Names is non-nil only for POI indexes and drives range/bearing output.
//
// An Index is immutable after construction except through AppendRegion,
// which callers must serialize against in-flight classification.
type Index struct {
	Store *tilestore.Store
	Grid  *tilegrid.Grid
	Names *tilestore.NameRegistry
}

// NewIndex builds the grid over an already loaded store.
func NewIndex(store *tilestore.Store, names *tilestore.NameRegistry) *Index {
	return &Index{
		Store: store,
		Grid:  tilegrid.Build(store.Regions()),
		Names: names,
	}
}

// LoadTerritories loads the territory tile CSV and indexes it.
func LoadTerritories(path string) (*Index, error) {
	store, err := tilestore.LoadTerritory(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: load territories: %w", err)
	}
	return NewIndex(store, nil), nil
}

// LoadPOIs loads the POI tile CSV plus its aligned name/type CSV and
// indexes them.
func LoadPOIs(tilePath, namesPath string) (*Index, error) {
	store, err := tilestore.LoadPOI(tilePath)
	if err != nil {
		return nil, fmt.Errorf("classifier: load poi tiles: %w", err)
	}
	names, err := tilestore.LoadNames(namesPath)
	if err != nil {
		return nil, fmt.Errorf("classifier: load poi names: %w", err)
	}
	if store.Len() != names.Len() {
		return nil, fmt.Errorf("classifier: poi tiles (%d) and names (%d) out of step",
			store.Len(), names.Len())
	}
	return NewIndex(store, names), nil
}

// AppendRegion adds one region to a POI index without a rebuild: the store
// and registry grow by one aligned entry and only the new region's cells are
// touched. Must not run concurrently with Classify.
func (idx *Index) AppendRegion(r geomodel.Region, name, typ string) geomodel.RegionID {
	id := idx.Store.Append(r, "")
	idx.Grid.Insert(id, r.Rect)
	if idx.Names != nil {
		idx.Names.Append(name, typ)
	}
	return id
}
