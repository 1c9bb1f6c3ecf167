package astro

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"

	"github.com/cjeanneret/TeleGo/internal/logic/units"
)

// GreenwichMeanSiderealTime returns the mean sidereal time at Greenwich
// for t, as an angle in [0, 360).
func GreenwichMeanSiderealTime(t time.Time) float64 {
	jd := julian.TimeToJD(t.UTC())
	return normalize360(sidereal.Mean(jd).Angle().Deg())
}

// LocalSiderealTime returns the sidereal time on the observer's meridian as
// an angle in [0, 360). longitudeDeg is positive east of Greenwich.
// The sum is formed in float64; only the final angle is narrowed.
func LocalSiderealTime(t time.Time, longitudeDeg float64) units.Degrees {
	lst := normalize360(GreenwichMeanSiderealTime(t) + longitudeDeg)
	return units.WrapAzimuth(units.Degrees(lst))
}

func normalize360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
