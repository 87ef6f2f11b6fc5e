package contextmgr

import (
	"math"
	"strings"
)

// Cycle phases as stored in user_contexts.cycle_phase.
const (
	PhaseMenstrual  = "menstrual"
	PhaseFollicular = "folicular"
	PhaseOvulation  = "ovulacao"
	PhaseLuteal     = "lutea"
)

var phaseAliases = map[string]string{
	"menstrual":   PhaseMenstrual,
	"menstruacao": PhaseMenstrual,
	"folicular":   PhaseFollicular,
	"follicular":  PhaseFollicular,
	"ovulacao":    PhaseOvulation,
	"ovulation":   PhaseOvulation,
	"lutea":       PhaseLuteal,
	"luteal":      PhaseLuteal,
}

// NormalizePhase maps accepted spellings to the stored phase name.
func NormalizePhase(phase string) (string, bool) {
	p, ok := phaseAliases[strings.ToLower(strings.TrimSpace(phase))]
	return p, ok
}

// phaseEnergy is the expected energy fraction when the producer sends none.
var phaseEnergy = map[string]float64{
	PhaseMenstrual:  0.4,
	PhaseFollicular: 0.7,
	PhaseOvulation:  0.9,
	PhaseLuteal:     0.6,
}

// energyFromFraction converts a 0..1 fraction to a 1..10 level.
func energyFromFraction(f float64) int {
	return clamp(int(math.Round(f*10)), MinLevel, MaxLevel)
}
