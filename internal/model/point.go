package model

import (
	"database/sql/driver"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// Point is a longitude/latitude pair. It is persisted as WKT text so the
// stored digits survive a round trip untouched.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// NewPoint returns a point at the given coordinate
func NewPoint(lon, lat float64) *Point {
	return &Point{Lon: lon, Lat: lat}
}

// Geom returns the point as a go-geom geometry
func (p Point) Geom() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat})
}

// WKT renders the point as well-known text, e.g. "POINT (-79.3832 43.6532)"
func (p Point) WKT() string {
	s, err := wkt.Marshal(p.Geom())
	if err != nil {
		// a flat XY point always encodes
		return fmt.Sprintf("POINT (%v %v)", p.Lon, p.Lat)
	}
	return s
}

func (p Point) String() string {
	return p.WKT()
}

// ParsePoint decodes a WKT point
func ParsePoint(s string) (*Point, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid point %q: %w", s, err)
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return nil, fmt.Errorf("invalid point %q: got %T", s, g)
	}
	if pt.Empty() {
		return nil, nil
	}
	return &Point{Lon: pt.X(), Lat: pt.Y()}, nil
}

// Value implements driver.Valuer
func (p Point) Value() (driver.Value, error) {
	return p.WKT(), nil
}

// Scan implements sql.Scanner
func (p *Point) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Point", src)
	}
	parsed, err := ParsePoint(s)
	if err != nil {
		return err
	}
	if parsed == nil {
		*p = Point{}
		return nil
	}
	*p = *parsed
	return nil
}

// PointsEqual reports whether two optional points hold the same coordinate
func PointsEqual(a, b *Point) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Lon == b.Lon && a.Lat == b.Lat
}

// BoundingBox is an inclusive latitude/longitude window. It never crosses
// the antimeridian, so MinLon <= MaxLon.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether p lies inside the box
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}
