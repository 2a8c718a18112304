// Package driver labels a driving style from a history of trips.
package driver

// Category is one of a fixed set of driving styles.
type Category int

const (
	EcoFriendly Category = iota
	Balanced
	Moderate
	Aggressive
)

var categories = map[Category]struct {
	label       string
	description string
}{
	EcoFriendly: {
		"Eco-Friendly Driver",
		"You maintain steady speeds, accelerate gently and plan ahead to minimise fuel consumption.",
	},
	Balanced: {
		"Balanced Driver",
		"Your driving shows a good balance between efficiency and performance with room for minor improvements",
	},
	Moderate: {
		"Moderate Driver",
		"Your driving is acceptable but could benefit from smoother acceleration and more consistent speeds",
	},
	Aggressive: {
		"Aggressive Driver",
		"Your driving style shows frequent rapid acceleration, hard braking, and inconsistent speeds.",
	},
}

// Categories lists every category in order.
func Categories() []Category {
	return []Category{EcoFriendly, Balanced, Moderate, Aggressive}
}

func (c Category) Label() string {
	return categories[c].label
}

func (c Category) Description() string {
	return categories[c].description
}

func (c Category) String() string {
	return c.Label()
}
