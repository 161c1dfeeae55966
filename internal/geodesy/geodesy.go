// Package geodesy provides shared geodetic constants and conversions for
// swath and grid geometry.
package geodesy

import "math"

// EarthRadiusMeters is the mean Earth radius (IUGG R1).
const EarthRadiusMeters = 6371008.8

// MetersPerDegreeLatitude is the approximate ground distance spanned by one
// degree of latitude on the mean sphere.
const MetersPerDegreeLatitude = EarthRadiusMeters * math.Pi / 180

// MetersPerDegreeLongitude returns the ground distance spanned by one degree
// of longitude at the given latitude.
func MetersPerDegreeLongitude(latDeg float64) float64 {
	return MetersPerDegreeLatitude * math.Cos(latDeg*math.Pi/180)
}

// ECEF converts a geographic coordinate to Earth-centred Earth-fixed
// coordinates in meters on the mean sphere. Chord distance between two ECEF
// points is a close approximation of the great-circle distance for
// separations far below the Earth radius.
func ECEF(latDeg, lonDeg float64) (x, y, z float64) {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	cosLat := math.Cos(lat)
	x = EarthRadiusMeters * cosLat * math.Cos(lon)
	y = EarthRadiusMeters * cosLat * math.Sin(lon)
	z = EarthRadiusMeters * math.Sin(lat)
	return x, y, z
}

// Haversine returns the great-circle distance in meters between two
// geographic coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// TangentPlane projects a geographic coordinate onto a local azimuthal
// equirectangular plane centred on (lat0, lon0). Output is east/north meters
// from the tangent point.
func TangentPlane(lat0, lon0, latDeg, lonDeg float64) (x, y float64) {
	x = (lonDeg - lon0) * MetersPerDegreeLongitude(lat0)
	y = (latDeg - lat0) * MetersPerDegreeLatitude
	return x, y
}

// TangentPlaneInverse converts local tangent-plane east/north meters back to
// a geographic coordinate.
func TangentPlaneInverse(lat0, lon0, x, y float64) (latDeg, lonDeg float64) {
	latDeg = lat0 + y/MetersPerDegreeLatitude
	lonDeg = lon0 + x/MetersPerDegreeLongitude(lat0)
	return latDeg, lonDeg
}
