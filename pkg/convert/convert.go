// Package convert maps Overpass and Nominatim API responses to GeoJSON.
package convert

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/yuiseki/NEREID/pkg/geo"
	"github.com/yuiseki/NEREID/pkg/osm"
)

// OverpassFeatureCollection maps the elements of an Overpass response to a
// GeoJSON FeatureCollection, preserving element order. Elements that lack the
// field required by their type, or whose type is unknown, are skipped.
func OverpassFeatureCollection(resp *osm.OverpassResponse) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if resp == nil {
		return fc
	}

	for _, elem := range resp.Elements {
		geom := elementGeometry(elem)
		if geom == nil {
			continue
		}

		feature := geojson.NewFeature(geom)
		for k, v := range elem.Tags {
			feature.Properties[k] = v
		}
		fc.Append(feature)
	}

	return fc
}

// elementGeometry maps a single Overpass element to a geometry.
// A nil return means the element cannot be represented and is skipped.
func elementGeometry(elem osm.OverpassElement) orb.Geometry {
	switch elem.Type {
	case "node":
		if elem.Lon == nil || elem.Lat == nil {
			return nil
		}
		return orb.Point{*elem.Lon, *elem.Lat}

	case "way":
		if elem.Geometry == nil {
			return nil
		}
		line := make(orb.LineString, 0, len(elem.Geometry))
		for _, pt := range elem.Geometry {
			line = append(line, orb.Point{pt.Lon, pt.Lat})
		}
		// A way is a polygon only if its ring is closed and has at least
		// four points; everything else stays a line.
		if len(line) >= 4 && line[0] == line[len(line)-1] {
			return orb.Polygon{orb.Ring(line)}
		}
		return line

	case "relation":
		if elem.Bounds == nil {
			return nil
		}
		// Relations are rendered as their bounding box, not their true
		// multigeometry. This is a deliberate simplification.
		return boundsPolygon(*elem.Bounds)
	}

	return nil
}

// boundsPolygon builds the closed five-point rectangle for a bounding box.
func boundsPolygon(b geo.BoundingBox) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.MinLon, b.MinLat},
		{b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat},
		{b.MinLon, b.MaxLat},
		{b.MinLon, b.MinLat},
	}}
}

// NominatimFeatureCollection maps a Nominatim search result list to a GeoJSON
// FeatureCollection. An empty result list yields an empty collection;
// otherwise only the first result is used, as a single Point feature.
func NominatimFeatureCollection(places []osm.NominatimPlace) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	if len(places) == 0 {
		return fc, nil
	}

	place := places[0]
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, osm.NewError(osm.ErrParseError,
			fmt.Sprintf("invalid longitude %q in Nominatim result", place.Lon))
	}
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, osm.NewError(osm.ErrParseError,
			fmt.Sprintf("invalid latitude %q in Nominatim result", place.Lat))
	}
	if err := geo.ValidateCoords(lat, lon); err != nil {
		return nil, err
	}

	feature := geojson.NewFeature(orb.Point{lon, lat})
	feature.Properties["name"] = place.DisplayName
	feature.Properties["type"] = place.Type
	feature.Properties["category"] = place.Category
	fc.Append(feature)

	return fc, nil
}
