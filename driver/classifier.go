package driver

import (
	"github.com/jd3nn1s/ecojuicer/trip"
	log "github.com/sirupsen/logrus"
)

// minTrips is the history needed before the averages are trusted.
const minTrips = 3

type rule struct {
	category Category
	match    func(m metrics) bool
}

type metrics struct {
	fuelConsumption float64
	avgRPM          float64
	maxRPM          float64
	avgSpeed        float64
	score           float64
}

// first match wins
var rules = []rule{
	{EcoFriendly, func(m metrics) bool {
		return m.score >= 85 && m.fuelConsumption < 5.5 && m.avgRPM < 2000 &&
			m.avgSpeed > 45 && m.avgSpeed < 80
	}},
	{EcoFriendly, func(m metrics) bool {
		return m.score >= 70 && m.fuelConsumption < 6.5 && m.avgRPM < 2300 &&
			m.avgSpeed > 40 && m.avgSpeed < 85
	}},
	{Balanced, func(m metrics) bool {
		return m.score >= 55 && m.fuelConsumption < 8.0 && m.avgRPM < 2600
	}},
	{Aggressive, func(m metrics) bool {
		return m.score < 55 || (m.fuelConsumption > 8.0 && m.maxRPM > 4500) || m.avgSpeed > 90
	}},
}

// Classify labels the driving style of a trip history. Fewer than three trips
// is always Balanced.
func Classify(trips []trip.Summary) Category {
	if len(trips) < minTrips {
		return Balanced
	}

	m := average(trips)
	log.WithField("trips", len(trips)).
		WithField("avgFuel", m.fuelConsumption).
		WithField("avgRPM", m.avgRPM).
		WithField("maxRPMAvg", m.maxRPM).
		WithField("avgSpeed", m.avgSpeed).
		WithField("avgScore", m.score).
		Debug("classifying driver")

	for _, r := range rules {
		if r.match(m) {
			return r.category
		}
	}
	return Moderate
}

func average(trips []trip.Summary) metrics {
	m := metrics{}
	for _, t := range trips {
		m.fuelConsumption += t.AverageFuelConsumption
		m.avgRPM += t.AverageRPM
		m.maxRPM += float64(t.MaxRPM)
		m.avgSpeed += t.AverageSpeedKmh
		m.score += float64(t.Score())
	}
	n := float64(len(trips))
	m.fuelConsumption /= n
	m.avgRPM /= n
	m.maxRPM /= n
	m.avgSpeed /= n
	m.score /= n
	return m
}

// Feedback returns personalised advice for category, tuned to trip.
func Feedback(category Category, t trip.Summary) string {
	switch category {
	case EcoFriendly:
		return "Excellent driving efficiency! You're maximising fuel economy with gentle acceleration and optimal RPM range"
	case Balanced:
		switch {
		case t.MaxRPM > 3000:
			return "Your driving is reasonably efficient but try to avoid high RPM peaks to improve fuel economy."
		case t.AverageFuelConsumption > 7.0:
			return "Consider gentler acceleration and maintaining more consistent speeds to reduce fuel consumption"
		}
		return "You have balanced driving habits. Small improvements in acceleration could boost efficiency."
	case Moderate:
		return "Your driving patterns vary considerably. Focus on maintaining steady speeds and consistent acceleration."
	case Aggressive:
		if t.MaxRPM > 4500 {
			return "High RPM driving is significantly increasing your fuel consumption. Try shifting earlier."
		}
		return "Your driving style tends to be aggressive. Smoother acceleration and deceleration would improve efficiency"
	}
	return ""
}
