package adjudicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTieredCoverage(t *testing.T) {
	tests := []struct {
		name    string
		allowed float64
		payable float64
	}{
		{"zero", 0, 0},
		{"inside first tier", 300, 300},
		{"first tier boundary", 500, 500},
		{"into second tier", 700, 660},
		{"second tier boundary", 1000, 900},
		{"into third tier", 1500, 1150},
		{"third tier boundary", 2000, 1400},
		{"into final tier", 2500, 1550},
		{"deep final tier", 10000, 3800},
		{"cents are preserved", 123.45, 123.45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.payable, TieredCoverage(tt.allowed))
		})
	}
}

func TestTieredCoverageNeverExceedsAllowed(t *testing.T) {
	for allowed := 0.0; allowed <= 5000; allowed += 37.5 {
		assert.LessOrEqual(t, TieredCoverage(allowed), allowed)
	}
}

func TestTieredCoverageMonotonic(t *testing.T) {
	prev := 0.0
	for allowed := 0.0; allowed <= 5000; allowed += 25 {
		payable := TieredCoverage(allowed)
		assert.GreaterOrEqual(t, payable, prev)
		prev = payable
	}
}
