package classifier

import "github.com/ogpredict/geofence/geomodel"

// Mode selects which regions a classification pass considers.
type Mode struct {
	label    string
	hasLabel bool
	region   geomodel.RegionID
	byRegion bool
}

// AnyRegion matches every region; each sample gets the first (lowest-id)
// containing region.
func AnyRegion() Mode {
	return Mode{}
}

// LabelFilter restricts matching to regions carrying exactly this label.
// Regions with other labels are invisible to the scan, not merely rejected
// after a first hit.
func LabelFilter(label string) Mode {
	return Mode{label: label, hasLabel: true}
}

// NameFilter restricts matching to one pre-resolved region. Candidate
// lookup is skipped entirely: each sample tests only this region.
func NameFilter(id geomodel.RegionID) Mode {
	return Mode{region: id, byRegion: true}
}

// admits reports whether the mode lets a candidate region through,
// given its label.
func (m Mode) admits(id geomodel.RegionID, label string) bool {
	if m.byRegion {
		return id == m.region
	}
	if m.hasLabel {
		return label == m.label
	}
	return true
}
