package contextmgr

import "github.com/pilarhub/eventcore/internal/database"

// ActivityType is the kind of work suggested for the current context.
type ActivityType string

const (
	ActivityAdministrative      ActivityType = "administrative"
	ActivityLightDevelopment    ActivityType = "light_development"
	ActivityStrategicPlanning   ActivityType = "strategic_planning"
	ActivityCreativeDevelopment ActivityType = "creative_development"
	ActivityMeetings            ActivityType = "meetings"
	ActivityExecution           ActivityType = "execution"
)

// menstrualLightWorkEnergy is the lowest energy at which light development is
// suggested during the menstrual phase.
const menstrualLightWorkEnergy = 5

// ShouldAcceptInterruption is false while focused, tired, menstruating or
// overloaded.
func ShouldAcceptInterruption(c *database.UserContext) bool {
	switch {
	case c.InFocusSession:
		return false
	case c.EnergyLevel < 4:
		return false
	case c.CyclePhase == PhaseMenstrual:
		return false
	case c.WorkloadPercent > 90:
		return false
	}
	return true
}

// NeedsBreak reports whether the user should pause.
func NeedsBreak(c *database.UserContext) bool {
	return c.NeedsBreak || c.StressLevel >= 8 || c.EnergyLevel <= 3
}

// GetOptimalActivityType picks an activity from phase, hour and energy.
// Without a known phase, low energy maps to administrative work and anything
// else to execution.
func GetOptimalActivityType(c *database.UserContext) ActivityType {
	switch c.CyclePhase {
	case PhaseMenstrual:
		if c.EnergyLevel >= menstrualLightWorkEnergy {
			return ActivityLightDevelopment
		}
		return ActivityAdministrative
	case PhaseFollicular:
		if c.HourOfDay < 12 {
			return ActivityStrategicPlanning
		}
		return ActivityCreativeDevelopment
	case PhaseOvulation:
		return ActivityMeetings
	case PhaseLuteal:
		return ActivityExecution
	}
	if c.EnergyLevel < 4 {
		return ActivityAdministrative
	}
	return ActivityExecution
}
