package adjudicator

import "math"

// Tier is one band of the coverage schedule. Cap is the width of the band;
// the final tier is unbounded.
type Tier struct {
	Cap  float64
	Rate float64
}

// DefaultTiers is the fixed coverage schedule: first $500 at 100%, next
// $500 at 80%, next $1,000 at 50%, remainder at 30%.
var DefaultTiers = []Tier{
	{Cap: 500, Rate: 1.0},
	{Cap: 500, Rate: 0.8},
	{Cap: 1000, Rate: 0.5},
	{Cap: math.Inf(1), Rate: 0.3},
}

// TieredCoverage walks the schedule consuming the allowed amount band by
// band and sums amount*rate, rounded to cents. Pure function of allowed.
func TieredCoverage(allowed float64) float64 {
	remain := allowed
	covered := 0.0
	for _, tier := range DefaultTiers {
		if remain <= 0 {
			break
		}
		chunk := math.Min(remain, tier.Cap)
		covered += chunk * tier.Rate
		remain -= chunk
	}
	return round2(covered)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
