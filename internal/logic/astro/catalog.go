package astro

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cjeanneret/TeleGo/internal/logic/units"
)

// ErrUnknownStar is returned when a name is not in the catalog.
var ErrUnknownStar = errors.New("unknown star")

// Star is a cataloged target. RA and Dec are J2000 degrees.
type Star struct {
	Name string
	RA   units.Degrees
	Dec  units.Degrees
	Mag  float32 // apparent visual magnitude (lower = brighter)
}

// Coordinates returns a target with the given equatorial coordinates.
// It is used for RA/Dec entered by hand.
func Coordinates(ra, dec units.Degrees) Star {
	return Star{
		Name: fmt.Sprintf("RA %s Dec %s", FormatRA(ra), FormatDec(dec)),
		RA:   ra,
		Dec:  dec,
	}
}

// brightStars are alignment and tracking targets visible from mid latitudes
// in both hemispheres. Ordered roughly by magnitude.
var brightStars = []Star{
	{"Sirius", 101.287, -16.716, -1.46},
	{"Canopus", 95.988, -52.696, -0.74},
	{"Arcturus", 213.915, 19.182, -0.05},
	{"Vega", 279.235, 38.784, 0.03},
	{"Capella", 79.172, 45.998, 0.08},
	{"Rigel", 78.634, -8.202, 0.13},
	{"Procyon", 114.826, 5.225, 0.34},
	{"Achernar", 24.429, -57.237, 0.46},
	{"Betelgeuse", 88.793, 7.407, 0.50},
	{"Altair", 297.696, 8.868, 0.76},
	{"Acrux", 186.650, -63.099, 0.76},
	{"Aldebaran", 68.980, 16.509, 0.85},
	{"Antares", 247.352, -26.432, 0.96},
	{"Spica", 201.298, -11.161, 0.97},
	{"Pollux", 116.329, 28.026, 1.14},
	{"Fomalhaut", 344.413, -29.622, 1.16},
	{"Deneb", 310.358, 45.280, 1.25},
	{"Regulus", 152.093, 11.967, 1.35},
	{"Castor", 113.650, 31.889, 1.58},
	{"Alioth", 193.507, 55.960, 1.77},
	{"Dubhe", 165.932, 61.751, 1.79},
	{"Mirfak", 51.081, 49.861, 1.79},
	{"Alkaid", 206.885, 49.313, 1.86},
	{"Polaris", 37.954, 89.264, 2.02},
	{"Hamal", 31.793, 23.463, 2.00},
	{"Mizar", 200.981, 54.925, 2.04},
	{"Alpheratz", 2.097, 29.091, 2.06},
	{"Kochab", 222.676, 74.156, 2.08},
	{"Rasalhague", 263.734, 12.560, 2.08},
	{"Algol", 47.042, 40.956, 2.12},
}

// Stars returns a copy of the catalog sorted by name.
func Stars() []Star {
	out := make([]Star, len(brightStars))
	copy(out, brightStars)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StarNames returns the catalog names sorted alphabetically.
func StarNames() []string {
	stars := Stars()
	names := make([]string, len(stars))
	for i, s := range stars {
		names[i] = s.Name
	}
	return names
}

// LookupStar finds a star by name, ignoring case and surrounding spaces.
func LookupStar(name string) (Star, error) {
	want := strings.TrimSpace(name)
	for _, s := range brightStars {
		if strings.EqualFold(s.Name, want) {
			return s, nil
		}
	}
	return Star{}, fmt.Errorf("%w: %q", ErrUnknownStar, name)
}
