package model

import "slices"

// CigarettesPerPack converts a pack price into the per-cigarette price the
// engine works in.
const CigarettesPerPack = 20

// SmokingProfile is collected during onboarding. CostPerCigarette is the only
// cost unit stored; pack prices are converted on input.
type SmokingProfile struct {
	YearsSmoked      float64  `json:"yearsSmoked"`
	CigarettesPerDay int      `json:"cigarettesPerDay"`
	CostPerCigarette float64  `json:"costPerCigarette"`
	Motivations      []string `json:"motivations"`
}

// Motivations are the reasons a user can pick during onboarding.
var Motivations = []string{
	"Health & Wellness",
	"Save Money",
	"Family & Relationships",
	"Physical Appearance",
	"Fitness & Performance",
	"Social Reasons",
	"Self-Control",
	"Medical Advice",
}

func ValidMotivation(m string) bool {
	return slices.Contains(Motivations, m)
}

// CostPerCigaretteFromPack converts a pack price to a per-cigarette price.
func CostPerCigaretteFromPack(costPerPack float64) float64 {
	return costPerPack / CigarettesPerPack
}
