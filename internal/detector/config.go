package detector

// Config holds the trip detection thresholds. It is immutable after
// construction.
type Config struct {
	MinSpeedMPS          float64 // minimum speed to consider movement
	MinTripDurationS     int64   // minimum sustained movement before promotion
	MinTripDistanceM     float64 // minimum covered distance before promotion
	MaxSampleAccuracyM   float64 // samples with a worse accuracy are rejected
	DriftRadiusM         float64 // dispersion below this is treated as GPS drift
	CandidateWindowS     int64   // bound on how long a candidate may accumulate, 0 = 4x MinTripDurationS
	SimplifyToleranceDeg float64 // route summary simplification tolerance
}

// DefaultConfig returns the detection thresholds used when none are configured
func DefaultConfig() Config {
	return Config{
		MinSpeedMPS:          0.8,
		MinTripDurationS:     60,
		MinTripDistanceM:     50,
		MaxSampleAccuracyM:   50,
		DriftRadiusM:         25,
		CandidateWindowS:     0,
		SimplifyToleranceDeg: 0.0001,
	}
}

func (c Config) candidateWindowMs() int64 {
	if c.CandidateWindowS > 0 {
		return c.CandidateWindowS * 1000
	}
	return 4 * c.MinTripDurationS * 1000
}

// classifyActivity maps average speed to an activity type.
// Speed bands (m/s):
// WALK: 0-2 (0-7.2 km/h)
// RUN: 2-3.3 (7.2-12 km/h)
// CYCLE: 3.3-8 (12-28.8 km/h)
// DRIVE: >8 (>28.8 km/h)
func classifyActivity(avgSpeed float64) string {
	if avgSpeed < 2.0 {
		return "WALK"
	} else if avgSpeed < 3.3 {
		return "RUN"
	} else if avgSpeed < 8.0 {
		return "CYCLE"
	}
	return "DRIVE"
}
