// Package farm holds the coop domain rules: vaccination plans and the
// reminder jobs for vaccines and feeding programs.
package farm

import (
	"errors"
	"fmt"
	"time"

	"smart-coop/internal/models"
)

// ErrUnknownPlan is returned for a flock type or plan kind with no schedule.
var ErrUnknownPlan = errors.New("unknown vaccination plan")

// Flock types and plan kinds accepted by Schedule.
const (
	FlockLayer   = "layer"
	FlockBroiler = "broiler"
	FlockMixed   = "mixed"

	PlanStandard = "standard"
	PlanComplete = "complete"
)

// Step is one vaccination of a plan, DayOffset days after the start date.
type Step struct {
	Name      string
	DayOffset int
	Week      int
}

// Plan is an ordered vaccination schedule and the days it covers.
type Plan struct {
	Steps     []Step
	TotalDays int
}

var plans = map[string]map[string]Plan{
	FlockLayer: {
		PlanStandard: {TotalDays: 42, Steps: []Step{
			{"Marek", 1, 1},
			{"Newcastle + Bronchite", 7, 1},
			{"Gumboro", 14, 2},
			{"Newcastle + Bronchite (rappel)", 28, 4},
			{"Encéphalomyélite", 35, 5},
		}},
		PlanComplete: {TotalDays: 56, Steps: []Step{
			{"Marek", 1, 1},
			{"Newcastle + Bronchite", 7, 1},
			{"Gumboro", 14, 2},
			{"Newcastle + Bronchite (rappel)", 28, 4},
			{"Encéphalomyélite", 42, 6},
			{"Gumboro (rappel)", 49, 7},
			{"Newcastle (final)", 56, 8},
		}},
	},
	FlockBroiler: {
		PlanStandard: {TotalDays: 49, Steps: []Step{
			{"Marek", 1, 1},
			{"Newcastle", 7, 1},
			{"Gumboro", 14, 2},
			{"Newcastle (rappel)", 21, 3},
			{"Gumboro (rappel)", 35, 5},
		}},
		PlanComplete: {TotalDays: 56, Steps: []Step{
			{"Marek", 1, 1},
			{"Newcastle", 7, 1},
			{"Gumboro", 14, 2},
			{"Newcastle (rappel)", 21, 3},
			{"Gumboro (rappel)", 35, 5},
			{"Bronchite", 42, 6},
			{"Newcastle (final)", 56, 8},
		}},
	},
	FlockMixed: {
		PlanStandard: {TotalDays: 42, Steps: []Step{
			{"Marek", 1, 1},
			{"Newcastle + Bronchite", 7, 1},
			{"Gumboro", 14, 2},
			{"Newcastle + Bronchite (rappel)", 28, 4},
		}},
		PlanComplete: {TotalDays: 56, Steps: []Step{
			{"Marek", 1, 1},
			{"Newcastle + Bronchite", 7, 1},
			{"Gumboro", 14, 2},
			{"Newcastle + Bronchite (rappel)", 28, 4},
			{"Gumboro (rappel)", 42, 6},
			{"Newcastle (final)", 56, 8},
		}},
	},
}

// LookupPlan returns the plan for flock and kind. An empty kind selects
// the standard plan.
func LookupPlan(flock, kind string) (Plan, error) {
	if kind == "" {
		kind = PlanStandard
	}
	plan, ok := plans[flock][kind]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s/%s", ErrUnknownPlan, flock, kind)
	}
	return plan, nil
}

// Schedule expands a plan into pending vaccines for userID, dated from
// the calendar day of start.
func Schedule(userID uint, start time.Time, flock, kind string, chickens int) ([]models.Vaccine, error) {
	if kind == "" {
		kind = PlanStandard
	}
	plan, err := LookupPlan(flock, kind)
	if err != nil {
		return nil, err
	}

	day := Day(start)
	vaccines := make([]models.Vaccine, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		vaccines = append(vaccines, models.Vaccine{
			UserID:           userID,
			Name:             step.Name,
			DueDate:          day.AddDate(0, 0, step.DayOffset),
			NumberOfChickens: chickens,
			WeekNumber:       step.Week,
			Notes:            fmt.Sprintf("week %d, generated %s/%s plan", step.Week, flock, kind),
		})
	}
	return vaccines, nil
}

// Day truncates t to midnight UTC of its calendar date in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
