package model

// Tier is a performance bucket relative to the chapter average.
type Tier string

const (
	TierGreen     Tier = "green"
	TierOrange    Tier = "orange"
	TierOrangeLow Tier = "orange-low"
	TierRed       Tier = "red"
)

// Tiers lists every tier from best to worst.
var Tiers = []Tier{TierGreen, TierOrange, TierOrangeLow, TierRed}
