package geodesy

import "math"

// WGS84 ellipsoid.
const (
	SemiMajorAxis = 6378137.0
	Flattening    = 1.0 / 298.257223563
)

var (
	semiMinorAxis = SemiMajorAxis * (1 - Flattening)
	ecc2          = 2*Flattening - Flattening*Flattening
	ecc2Prime     = (SemiMajorAxis*SemiMajorAxis - semiMinorAxis*semiMinorAxis) / (semiMinorAxis * semiMinorAxis)
)

// ECEFToGeodetic converts an earth-centered earth-fixed position (meters) to
// geodetic latitude/longitude (degrees) and height above the ellipsoid
// (meters) using Bowring's closed-form approximation, no iteration.
//
// The degenerate input x == y == 0 (a point on the polar axis) yields
// longitude 0 rather than whatever atan2(0, 0) returns.
func ECEFToGeodetic(x, y, z float64) (latDeg, lonDeg, altM float64) {
	p := math.Sqrt(x*x + y*y)
	theta := math.Atan2(z*SemiMajorAxis, p*semiMinorAxis)
	sinT := math.Sin(theta)
	cosT := math.Cos(theta)

	lon := math.Atan2(y, x)
	lat := math.Atan2(z+ecc2Prime*semiMinorAxis*sinT*sinT*sinT, p-ecc2*SemiMajorAxis*cosT*cosT*cosT)
	sinLat := math.Sin(lat)
	n := SemiMajorAxis / math.Sqrt(1-ecc2*sinLat*sinLat)
	alt := p/math.Cos(lat) - n

	if x == 0 && y == 0 {
		lon = 0
	}
	return lat * 180 / math.Pi, lon * 180 / math.Pi, alt
}

// GeodeticToECEF is the forward WGS84 transform.
func GeodeticToECEF(latDeg, lonDeg, altM float64) (x, y, z float64) {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := SemiMajorAxis / math.Sqrt(1-ecc2*sinLat*sinLat)
	x = (n + altM) * cosLat * math.Cos(lon)
	y = (n + altM) * cosLat * math.Sin(lon)
	z = (n*(1-ecc2) + altM) * sinLat
	return x, y, z
}

// Round rounds v to the given number of decimal places, halves away from zero.
func Round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
