package astro

import (
	"github.com/chewxy/math32"

	"github.com/cjeanneret/TeleGo/internal/logic/units"
)

// EquatorialToHorizontal converts a target's right ascension and declination
// into the topocentric horizontal position seen by an observer at latitude lat
// when the local sidereal time is lst. All angles are in degrees; lst is the
// sidereal time expressed as an angle (360° = 24 sidereal hours).
//
// Formulas (spherical astronomy, HA = LST - RA):
//
//	sin(alt) = sin(dec)·sin(lat) + cos(dec)·cos(lat)·cos(HA)
//	az       = atan2(-cos(dec)·cos(lat)·sin(HA), sin(dec) - sin(lat)·sin(alt)) + 180°
//
// Azimuth lies in [0, 360] and is not wrapped. The +180° shift puts the
// meridian toward the elevated pole's opposite side at 0°: in the northern
// hemisphere due south reads 0°, west 90° and due north 180°, as in Meeus.
// Mounts homed elsewhere carry the difference as a home offset (see
// tracking.Tracker). Near the pole and the zenith the azimuth is whatever
// atan2 yields.
//
// sin(alt) is clamped to [-1, 1] before asin, and the clamped value is the
// one used in x. This departs from the bare identity only where single
// precision rounding has already pushed |sin(alt)| past 1, i.e. at the
// zenith or nadir, where it turns a NaN altitude into ±90°.
func EquatorialToHorizontal(ra, dec, lat, lst units.Degrees) units.Position {
	decRad := units.DegreesToRadians(dec)
	latRad := units.DegreesToRadians(lat)

	// Hour angle, left unnormalized: the trig below is periodic.
	ha := units.DegreesToRadians(lst) - units.DegreesToRadians(ra)

	sinDec, cosDec := math32.Sin(decRad), math32.Cos(decRad)
	sinLat, cosLat := math32.Sin(latRad), math32.Cos(latRad)

	sinAlt := sinDec*sinLat + cosDec*cosLat*math32.Cos(ha)
	// Rounding can push |sin(alt)| a hair past 1 at the zenith.
	if sinAlt > 1 {
		sinAlt = 1
	} else if sinAlt < -1 {
		sinAlt = -1
	}
	altitude := units.RadiansToDegrees(math32.Asin(sinAlt))

	y := -cosDec * cosLat * math32.Sin(ha)
	x := sinDec - sinLat*sinAlt
	azimuth := units.RadiansToDegrees(math32.Atan2(y, x)) + 180.0

	return units.Position{Azimuth: azimuth, Altitude: altitude}
}
