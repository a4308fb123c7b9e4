package generator

import (
	"math"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
)

// hourlyWeights is the relative volume per local hour on a weekday, with the
// morning and evening commutes as peaks.
var hourlyWeights = [24]float64{
	0.15, 0.10, 0.08, 0.08, 0.12, 0.35,
	0.80, 1.60, 1.90, 1.30, 1.00, 1.05,
	1.20, 1.15, 1.00, 1.05, 1.30, 1.80,
	1.95, 1.40, 0.90, 0.65, 0.45, 0.25,
}

// classMix is the share of each class at a typical sensor.
var classMix = map[vehicleclass.Class]float64{
	vehicleclass.Car:        0.70,
	vehicleclass.Motorcycle: 0.18,
	vehicleclass.BusTruck:   0.09,
	vehicleclass.Undefined:  0.03,
}

// trafficFactor scales base volume for the local time t.
func trafficFactor(t time.Time) float64 {
	factor := hourlyWeights[t.Hour()]
	switch t.Weekday() {
	case time.Saturday:
		// flatter profile, no commute peaks
		factor = 0.7 * (0.5*factor + 0.5)
	case time.Sunday:
		factor = 0.5 * (0.5*factor + 0.5)
	case time.Friday:
		if t.Hour() >= 17 {
			factor *= 1.15
		}
	}
	return factor
}

// poisson draws from a Poisson distribution with mean lambda. Large means use
// the normal approximation.
func poisson(lambda float64, uniform func() float64, normal func() float64) int64 {
	if lambda <= 0 {
		return 0
	}
	if lambda > 30 {
		v := math.Round(lambda + math.Sqrt(lambda)*normal())
		if v < 0 {
			return 0
		}
		return int64(v)
	}
	l := math.Exp(-lambda)
	var k int64
	for p := 1.0; ; k++ {
		p *= uniform()
		if p <= l {
			return k
		}
	}
}
