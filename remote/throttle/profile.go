package throttle

// Profile selects the acceleration curve
type Profile uint8

const (
	Linear Profile = iota
	Movie          // Measured from the film, slow at both ends
)

func (p Profile) String() string {
	if p == Movie {
		return "movie"
	}
	return "linear"
}

// Number of lever buckets; bucket = (|pos|-1) * Buckets / 100
const Buckets = 5

// Linear profile, indexed by bucket
var (
	LinearDelays = [Buckets]int{50, 42, 35, 28, 20} // ms per step
	LinearSteps  = [Buckets]int{1, 1, 1, 1, 1}
	LinearDecel  = [Buckets]int{1, 1, 1, 2, 2}
)

// Movie profile. MovieDelays is indexed by whole speed units and scaled
// by MovieFactors[bucket]/100.
var (
	MovieFactors = [Buckets]int{25, 21, 17, 14, 10}
	MovieDecel   = [Buckets]int{2, 2, 2, 2, 2}
	MovieDelays  = [89]int{
		0, 90, 90, 90, 90, 90, 90, 95, 95, 100,
		105, 110, 115, 120, 125, 130, 135, 140, 145, 150,
		155, 160, 165, 170, 175, 180, 185, 190, 195, 200,
		200, 200, 202, 203, 204, 205, 206, 207, 208, 209,
		210, 211, 212, 213, 214, 215, 216, 217, 218, 219,
		220, 221, 222, 223, 224, 225, 226, 227, 228, 229,
		230, 233, 236, 240, 243, 246, 250, 253, 256, 260,
		263, 266, 270, 273, 276, 280, 283, 286, 290, 293,
		296, 300, 300, 303, 303, 306, 310, 310, 0,
	}
)

// MinReverseDelay floors the movie profile's deceleration delay
const MinReverseDelay = 13

// CoastCurve gives {modulus, offset} per whole speed unit. Each coast
// step subtracts max(0, rand(modulus) - offset) tenths.
var CoastCurve = [89][2]int{
	{6, 2}, {6, 2}, {6, 2}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 4},
	{6, 4}, {6, 4}, {6, 4}, {6, 4}, {6, 4}, {6, 4}, {6, 4}, {6, 4}, {6, 3}, {6, 3},
	{6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3},
	{6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 3},
	{6, 3}, {6, 3}, {6, 3}, {6, 3}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2},
	{6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2},
	{6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2},
	{6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {6, 2}, {5, 1}, {5, 1}, {5, 1},
	{5, 1}, {5, 1}, {5, 1}, {5, 1}, {5, 1}, {5, 1}, {5, 1}, {5, 1}, {5, 1},
}

// Coast delay is rand(CoastJitter) plus the profile's base, in ms
const (
	CoastJitter     = 30
	CoastBaseMovie  = 60
	CoastBaseLinear = 55
)

// Speed range in tenths
const (
	MaxSpeed = 880
)

// P1 start thresholds in tenths. A standalone count-up plays the travel
// start cue once the speed exceeds this.
const (
	P1StartMovie  = 835
	P1StartLinear = 820
)

// P1Start returns the travel start threshold for the profile
func (p Profile) P1Start() int {
	if p == Movie {
		return P1StartMovie
	}
	return P1StartLinear
}

func bucket(pos int) int {
	if pos < 0 {
		pos = -pos
	}
	if pos > 100 {
		pos = 100
	}
	return (pos - 1) * Buckets / 100
}
