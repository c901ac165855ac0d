// Package geo converts wire coordinates into map points.
package geo

import (
	"math"
	"strconv"
	"strings"
)

// Scale is the fixed-point factor used for coordinates on the wire.
const Scale = 1e7

// Longitudes at or below LongitudeShiftThreshold are moved east by
// LongitudeShift degrees.
const (
	LongitudeShiftThreshold = 100.0
	LongitudeShift          = 360.0
)

// Point is a [latitude, longitude] pair in degrees.
type Point [2]float64

func (p Point) Lat() float64 { return p[0] }
func (p Point) Lon() float64 { return p[1] }

// FromFixed converts a fixed-point wire coordinate to degrees.
func FromFixed(v int32) float64 {
	return float64(v) / Scale
}

// ToFixed converts degrees to a fixed-point wire coordinate.
func ToFixed(deg float64) int32 {
	return int32(math.Round(deg * Scale))
}

// NormalizeLongitude applies the longitude shift.
func NormalizeLongitude(lon float64) float64 {
	if lon <= LongitudeShiftThreshold {
		return lon + LongitudeShift
	}
	return lon
}

// SanitizeNumber reports v as a usable coordinate component. Numeric strings
// are parsed. Nil, zero, NaN and non-numeric values are rejected.
func SanitizeNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case *float64:
		if x == nil {
			return 0, false
		}
		f = *x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// SanitizeLatLon builds a point from raw latitude and longitude values,
// normalizing the longitude. It returns ok=false when either is unusable.
func SanitizeLatLon(lat, lon any) (Point, bool) {
	la, ok := SanitizeNumber(lat)
	if !ok {
		return Point{}, false
	}
	lo, ok := SanitizeNumber(lon)
	if !ok {
		return Point{}, false
	}
	return Point{la, NormalizeLongitude(lo)}, true
}

// FixedPoint converts fixed-point wire coordinates into degrees. A zero
// component means the node sent no fix. The longitude is not shifted;
// SanitizeLatLon does that for display.
func FixedPoint(lat, lon int32) (Point, bool) {
	la, ok := SanitizeNumber(FromFixed(lat))
	if !ok {
		return Point{}, false
	}
	lo, ok := SanitizeNumber(FromFixed(lon))
	if !ok {
		return Point{}, false
	}
	return Point{la, lo}, true
}
