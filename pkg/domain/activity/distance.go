package activity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	ColumnDistanceMiles      = "Distance (mi)"
	ColumnDistanceKilometers = "Distance (km)"

	metersPerMile = 1609.344
)

var (
	// ErrUnknownDistanceUnit means the export has neither distance column.
	ErrUnknownDistanceUnit = errors.New("no recognised distance column")
	// ErrMalformedDistance is returned for non-numeric distance text.
	ErrMalformedDistance = errors.New("malformed distance")
)

func MilesToMeters(miles float64) float64 {
	return miles * metersPerMile
}

func KilometersToMeters(km float64) float64 {
	return km * 1000
}

// DistanceMode binds the distance column of an export to its converter.
type DistanceMode struct {
	Column  string
	toMeter func(float64) float64
}

// ResolveDistanceMode picks the distance column from the export headers.
// When both columns are present kilometres win.
func ResolveDistanceMode(headers []string) (DistanceMode, error) {
	var mode DistanceMode
	for _, h := range headers {
		switch strings.TrimSpace(h) {
		case ColumnDistanceMiles:
			if mode.Column == "" {
				mode = DistanceMode{Column: ColumnDistanceMiles, toMeter: MilesToMeters}
			}
		case ColumnDistanceKilometers:
			mode = DistanceMode{Column: ColumnDistanceKilometers, toMeter: KilometersToMeters}
		}
	}
	if mode.Column == "" {
		return DistanceMode{}, fmt.Errorf("%w: expected %q or %q", ErrUnknownDistanceUnit, ColumnDistanceMiles, ColumnDistanceKilometers)
	}
	return mode, nil
}

// Meters converts distance text from the bound column to meters.
// An empty value is zero distance.
func (m DistanceMode) Meters(text string) (float64, error) {
	if m.toMeter == nil {
		return 0, ErrUnknownDistanceUnit
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedDistance, text)
	}
	return m.toMeter(v), nil
}
