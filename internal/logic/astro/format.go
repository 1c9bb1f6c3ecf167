package astro

import (
	"fmt"

	sexa "github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"

	"github.com/cjeanneret/TeleGo/internal/logic/units"
)

// FormatRA renders an angle in degrees as hours, minutes and seconds
// (e.g. 6ʰ45ᵐ8.9ˢ). It is also used for sidereal time.
func FormatRA(deg units.Degrees) string {
	return fmt.Sprintf("%.1s", sexa.FmtRA(unit.RAFromDeg(float64(deg))))
}

// FormatDec renders an angle in degrees as degrees, arcminutes and arcseconds.
func FormatDec(deg units.Degrees) string {
	return fmt.Sprintf("%.0s", sexa.FmtAngle(unit.AngleFromDeg(float64(deg))))
}
