package spatial

// CO2PerKm is the average CO2 emission of a passenger car in kg per km
// (EU fleet average). Distance covered by foot or bike instead of a car is
// credited at this rate.
const CO2PerKm = 0.192

// Calorie expenditure per kilometer per kilogram of body weight, by activity.
// Linear approximations of standard MET tables.
const (
	caloriesPerKmKgWalk  = 0.53
	caloriesPerKmKgRun   = 1.03
	caloriesPerKmKgCycle = 0.28
)

// CO2SavedKg estimates the CO2 saved by covering the given distance without a
// car. Negative distances are treated as zero.
func CO2SavedKg(distanceKm float64) float64 {
	if distanceKm <= 0 {
		return 0
	}
	return distanceKm * CO2PerKm
}

// Calories estimates the energy burned over a distance for the given activity
// and body weight. Activities without a meaningful expenditure (driving,
// manual entries, unknown types) estimate zero.
func Calories(distanceKm float64, activity string, weightKg float64) float64 {
	if distanceKm <= 0 || weightKg <= 0 {
		return 0
	}

	var perKmKg float64
	switch activity {
	case "WALK":
		perKmKg = caloriesPerKmKgWalk
	case "RUN":
		perKmKg = caloriesPerKmKgRun
	case "CYCLE":
		perKmKg = caloriesPerKmKgCycle
	default:
		return 0
	}

	return distanceKm * weightKg * perKmKg
}
