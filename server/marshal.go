package server

import (
	"io"

	"github.com/mailru/easyjson/jwriter"

	"github.com/ogpredict/geofence/geomodel"
)

// writeMatchListFast serializes a match list straight into the response
// body. Samples carry their input position so callers can correlate results
// with the submitted point list; POI fields appear only when filled.
func writeMatchListFast(w io.Writer, matches []geomodel.Match[int]) {
	out := &jwriter.Writer{}

	out.RawByte('[')
	for i, m := range matches {
		if i > 0 {
			out.RawByte(',')
		}
		out.RawByte('{')
		out.RawString(`"index":`)
		out.Int(m.Sample.Data)
		out.RawString(`,"lat":`)
		out.Float64(m.Sample.Lat)
		out.RawString(`,"lon":`)
		out.Float64(m.Sample.Lon)
		out.RawString(`,"region":`)
		out.Int32(int32(m.Region))
		out.RawString(`,"label":`)
		out.String(m.Label)
		if m.Name != "" {
			out.RawString(`,"name":`)
			out.String(m.Name)
			out.RawString(`,"type":`)
			out.String(m.Type)
			out.RawString(`,"range_km":`)
			out.Float64(m.RangeKm)
			out.RawString(`,"bearing_deg":`)
			out.Float64(m.BearingDeg)
		}
		out.RawByte('}')
	}
	out.RawByte(']')

	out.DumpTo(w)
}

func writeStringListFast(w io.Writer, items []string) {
	out := &jwriter.Writer{}

	out.RawByte('[')
	for i, s := range items {
		if i > 0 {
			out.RawByte(',')
		}
		out.String(s)
	}
	out.RawByte(']')

	out.DumpTo(w)
}
