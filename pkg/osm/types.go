// Package osm provides utilities for interacting with OpenStreetMap APIs.
package osm

import "github.com/yuiseki/NEREID/pkg/geo"

// OverpassResponse is the decoded payload of an Overpass interpreter call.
type OverpassResponse struct {
	Elements []OverpassElement `json:"elements"`
}

// OverpassElement represents an element returned from the Overpass API.
// Lat and Lon are pointers so that an element missing its coordinates can be
// distinguished from one located at 0,0.
type OverpassElement struct {
	ID       int64             `json:"id"`
	Type     string            `json:"type"`
	Lat      *float64          `json:"lat,omitempty"`
	Lon      *float64          `json:"lon,omitempty"`
	Geometry []geo.Location    `json:"geometry,omitempty"` // For ways, with "out geom;"
	Bounds   *geo.BoundingBox  `json:"bounds,omitempty"`   // For relations
	Tags     map[string]string `json:"tags,omitempty"`
}

// NominatimPlace is a single search result in Nominatim's jsonv2 format.
// Nominatim returns coordinates as strings.
type NominatimPlace struct {
	PlaceID     int64  `json:"place_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
}
