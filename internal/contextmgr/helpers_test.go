package contextmgr

import (
	"testing"

	"github.com/pilarhub/eventcore/internal/database"
)

func TestShouldAcceptInterruption(t *testing.T) {
	tests := []struct {
		name string
		ctx  database.UserContext
		want bool
	}{
		{name: "rested and free", ctx: database.UserContext{EnergyLevel: 7, WorkloadPercent: 50}, want: true},
		{name: "in focus session", ctx: database.UserContext{EnergyLevel: 7, InFocusSession: true}, want: false},
		{name: "energy 3", ctx: database.UserContext{EnergyLevel: 3}, want: false},
		{name: "energy 4", ctx: database.UserContext{EnergyLevel: 4}, want: true},
		{name: "menstrual", ctx: database.UserContext{EnergyLevel: 8, CyclePhase: PhaseMenstrual}, want: false},
		{name: "luteal", ctx: database.UserContext{EnergyLevel: 8, CyclePhase: PhaseLuteal}, want: true},
		{name: "workload 90", ctx: database.UserContext{EnergyLevel: 7, WorkloadPercent: 90}, want: true},
		{name: "workload 90.1", ctx: database.UserContext{EnergyLevel: 7, WorkloadPercent: 90.1}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldAcceptInterruption(&tt.ctx); got != tt.want {
				t.Errorf("ShouldAcceptInterruption() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNeedsBreak(t *testing.T) {
	tests := []struct {
		name string
		ctx  database.UserContext
		want bool
	}{
		{name: "fine", ctx: database.UserContext{EnergyLevel: 7, StressLevel: 3}, want: false},
		{name: "flag set", ctx: database.UserContext{EnergyLevel: 7, NeedsBreak: true}, want: true},
		{name: "stress 7", ctx: database.UserContext{EnergyLevel: 7, StressLevel: 7}, want: false},
		{name: "stress 8", ctx: database.UserContext{EnergyLevel: 7, StressLevel: 8}, want: true},
		{name: "energy 3", ctx: database.UserContext{EnergyLevel: 3}, want: true},
		{name: "energy 4", ctx: database.UserContext{EnergyLevel: 4}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsBreak(&tt.ctx); got != tt.want {
				t.Errorf("NeedsBreak() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetOptimalActivityType(t *testing.T) {
	tests := []struct {
		name string
		ctx  database.UserContext
		want ActivityType
	}{
		{name: "menstrual energy 4", ctx: database.UserContext{CyclePhase: PhaseMenstrual, EnergyLevel: 4}, want: ActivityAdministrative},
		{name: "menstrual energy 5", ctx: database.UserContext{CyclePhase: PhaseMenstrual, EnergyLevel: 5}, want: ActivityLightDevelopment},
		{name: "follicular hour 11", ctx: database.UserContext{CyclePhase: PhaseFollicular, EnergyLevel: 8, HourOfDay: 11}, want: ActivityStrategicPlanning},
		{name: "follicular hour 12", ctx: database.UserContext{CyclePhase: PhaseFollicular, EnergyLevel: 8, HourOfDay: 12}, want: ActivityCreativeDevelopment},
		{name: "ovulation", ctx: database.UserContext{CyclePhase: PhaseOvulation, EnergyLevel: 2}, want: ActivityMeetings},
		{name: "luteal", ctx: database.UserContext{CyclePhase: PhaseLuteal, EnergyLevel: 9}, want: ActivityExecution},
		{name: "no phase energy 3", ctx: database.UserContext{EnergyLevel: 3}, want: ActivityAdministrative},
		{name: "no phase energy 4", ctx: database.UserContext{EnergyLevel: 4}, want: ActivityExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetOptimalActivityType(&tt.ctx); got != tt.want {
				t.Errorf("GetOptimalActivityType() = %q, want %q", got, tt.want)
			}
		})
	}
}
