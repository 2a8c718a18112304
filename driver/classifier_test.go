package driver

import (
	"testing"

	"github.com/jd3nn1s/ecojuicer/trip"
	"github.com/stretchr/testify/assert"
)

func mkTrips(n int, s trip.Summary) []trip.Summary {
	trips := make([]trip.Summary, n)
	for i := range trips {
		trips[i] = s
	}
	return trips
}

func scored(speed, fuel, avgRPM float64, maxRPM, score int) trip.Summary {
	return trip.Summary{
		AverageSpeedKmh:        speed,
		AverageFuelConsumption: fuel,
		AverageRPM:             avgRPM,
		MaxRPM:                 maxRPM,
	}.WithScore(score)
}

func TestClassifyInsufficientHistory(t *testing.T) {
	aggressive := scored(130, 20, 4000, 6000, 5)
	assert.Equal(t, Balanced, Classify(nil))
	assert.Equal(t, Balanced, Classify(mkTrips(1, aggressive)))
	assert.Equal(t, Balanced, Classify(mkTrips(2, aggressive)))
	assert.Equal(t, Aggressive, Classify(mkTrips(3, aggressive)))
}

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name     string
		trip     trip.Summary
		expected Category
	}{
		{"strict eco", scored(60, 5, 1800, 2500, 90), EcoFriendly},
		{"relaxed eco", scored(82, 6, 2200, 3000, 75), EcoFriendly},
		{"balanced", scored(95, 7.5, 2500, 3500, 60), Balanced},
		{"low score", scored(60, 9, 2700, 3500, 50), Aggressive},
		{"high fuel and peaks", scored(60, 9, 2000, 4600, 60), Aggressive},
		{"very fast", scored(95, 9, 2000, 3000, 60), Aggressive},
		{"moderate", scored(60, 9, 2000, 3000, 60), Moderate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(mkTrips(3, tt.trip)))
		})
	}
}

func TestClassifyUsesMeans(t *testing.T) {
	trips := []trip.Summary{
		scored(60, 5, 1800, 2500, 100),
		scored(60, 5, 1800, 2500, 100),
		scored(60, 5, 1800, 2500, 10),
	}
	// mean score of 70 misses the strict band but meets the relaxed one
	assert.Equal(t, EcoFriendly, Classify(trips))

	// unscored trips count as zero
	trips[2].EfficiencyScore = nil
	assert.Equal(t, Balanced, Classify(trips))
}

func TestFeedback(t *testing.T) {
	calm := trip.Summary{MaxRPM: 2500, AverageFuelConsumption: 5}
	peaky := trip.Summary{MaxRPM: 3500, AverageFuelConsumption: 5}
	thirsty := trip.Summary{MaxRPM: 2500, AverageFuelConsumption: 8}
	redline := trip.Summary{MaxRPM: 5000}

	assert.Contains(t, Feedback(EcoFriendly, calm), "Excellent driving efficiency!")
	assert.Contains(t, Feedback(Balanced, peaky), "avoid high RPM peaks")
	assert.Contains(t, Feedback(Balanced, thirsty), "gentler acceleration")
	assert.Contains(t, Feedback(Balanced, calm), "balanced driving habits")
	assert.Contains(t, Feedback(Moderate, calm), "vary considerably")
	assert.Contains(t, Feedback(Aggressive, redline), "Try shifting earlier.")
	assert.Contains(t, Feedback(Aggressive, calm), "tends to be aggressive")
}

func TestCategoryLabels(t *testing.T) {
	for _, c := range Categories() {
		assert.NotEmpty(t, c.Label())
		assert.NotEmpty(t, c.Description())
	}
	assert.Equal(t, "Eco-Friendly Driver", EcoFriendly.String())
	assert.Equal(t, "Aggressive Driver", Aggressive.Label())
}
