package efficiency

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jd3nn1s/ecojuicer/trip"
)

const (
	criticalScore    = 30
	significantScore = 50
	emphasisScore    = 40

	goodSubScore       = 85.0
	improvableSubScore = 60.0
)

// Feedback returns the feedback text for s.
func Feedback(s trip.Summary) string {
	return feedback(s, Evaluate(s))
}

func feedback(s trip.Summary, b Breakdown) string {
	var sb strings.Builder

	switch {
	case b.Overall < criticalScore:
		sb.WriteString("Your driving efficiency is critically low. ")
	case b.Overall < significantScore:
		sb.WriteString("Your driving shows significant inefficiencies. ")
	}

	if b.Speed >= goodSubScore {
		sb.WriteString("Good job maintaining an efficient speed. ")
	}
	if b.RPM >= goodSubScore {
		sb.WriteString("You're keeping engine RPM in an efficient range. ")
	}
	if b.Fuel >= goodSubScore {
		sb.WriteString("Excellent fuel consumption! ")
	}

	lowSpeed := s.AverageSpeedKmh < optimalAvgSpeedMin
	switch {
	case b.Speed < improvableSubScore && lowSpeed:
		fmt.Fprintf(&sb, "Your average speed of %s km/h is too low, indicating frequent stop starts or traffic congestion. "+
			"Try planning routes to avoid heavy traffic. ", number(s.AverageSpeedKmh))
	case b.Speed < improvableSubScore:
		fmt.Fprintf(&sb, "Your average speed of %s km/h is inefficiently high. "+
			"Reduce motorway speed to around 70-80 km/h for better efficiency. ", number(s.AverageSpeedKmh))
	case b.Speed < goodSubScore && lowSpeed:
		sb.WriteString("Try to maintain a steadier speed and avoid stop start traffic when possible. ")
	case b.Speed < goodSubScore:
		sb.WriteString("Consider reducing your motorway speed slightly for better efficiency. ")
	}

	switch {
	case b.RPM < improvableSubScore:
		fmt.Fprintf(&sb, "Your engine RPM is far too high (max: %d, avg: %s). "+
			"Shift up earlier and accelerate more gently. ", s.MaxRPM, number(s.AverageRPM))
	case b.RPM < goodSubScore:
		sb.WriteString("Try shifting earlier to keep RPM lower. Your engine is working harder than optimal. ")
	}

	switch {
	case b.Fuel < improvableSubScore:
		fmt.Fprintf(&sb, "Your fuel consumption of %s L/100km is extremely high. "+
			"Focus on smoother acceleration, consistent speeds and gentler braking. ", number(s.AverageFuelConsumption))
	case b.Fuel < goodSubScore:
		sb.WriteString("Your fuel consumption could be improved. " +
			"Maintain steady speeds and anticipate traffic flow to reduce fuel usage. ")
	}

	if b.Overall < emphasisScore {
		sb.WriteString("\n\nYour current driving style is significantly increasing fuel costs and emissions. " +
			"Consider following eco-driving principles for substantial improvements.")
	}

	return strings.TrimSpace(sb.String())
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
