package partner

import (
	"strings"
	"unicode/utf16"
)

// BBox is an approximate (lonMin, latMin, lonMax, latMax) box.
type BBox struct {
	LonMin float64
	LatMin float64
	LonMax float64
	LatMax float64
}

func (b BBox) Contains(p Point) bool {
	return p.Lon >= b.LonMin && p.Lon <= b.LonMax && p.Lat >= b.LatMin && p.Lat <= b.LatMax
}

var continentBoxes = map[string]BBox{
	"europe":        {LonMin: -10, LatMin: 36, LonMax: 35, LatMax: 70},
	"asia":          {LonMin: 60, LatMin: 5, LonMax: 145, LatMax: 55},
	"africa":        {LonMin: -20, LatMin: -35, LonMax: 55, LatMax: 35},
	"north america": {LonMin: -130, LatMin: 15, LonMax: -60, LatMax: 60},
	"south america": {LonMin: -80, LatMin: -55, LonMax: -35, LatMax: 15},
	"oceania":       {LonMin: 110, LatMin: -50, LonMax: 180, LatMax: 0},
	"australia":     {LonMin: 110, LatMin: -50, LonMax: 180, LatMax: 0},
}

var worldBox = BBox{LonMin: -180, LatMin: -60, LonMax: 180, LatMax: 80}

// ContinentBBox returns the box for a continent name, or the whole world.
func ContinentBBox(continent string) BBox {
	if box, ok := continentBoxes[strings.ToLower(strings.TrimSpace(continent))]; ok {
		return box
	}
	return worldBox
}

// FallbackPoint places an unresolvable school at a stable pseudo-random
// position inside its continent box. Equal inputs give equal points.
func FallbackPoint(continent string, country string, city string, name string) Point {
	box := ContinentBBox(continent)
	seed := continent + "|" + country + "|" + city + "|" + name

	a := hashToUnit(seed)
	b := hashToUnit(seed + "::b")
	return Point{
		Lon: box.LonMin + a*(box.LonMax-box.LonMin),
		Lat: box.LatMin + b*(box.LatMax-box.LatMin),
	}
}

// hashToUnit is 32-bit FNV-1a over the UTF-16 code units of value, scaled to [0,1).
func hashToUnit(value string) float64 {
	hash := uint32(2166136261)
	for _, unit := range utf16.Encode([]rune(value)) {
		hash ^= uint32(unit)
		hash *= 16777619
	}
	return float64(hash) / (1 << 32)
}
