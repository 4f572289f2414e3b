// energy.go - Basal metabolic rate and total energy expenditure

package nutrition

import "fmt"

// Equation selects the basal metabolic rate formula.
type Equation string

const (
	MifflinStJeor          Equation = "MIFFLIN_ST_JEOR"
	HarrisBenedictOriginal Equation = "HARRIS_BENEDICT_ORIGINAL"
	HarrisBenedictRevised  Equation = "HARRIS_BENEDICT_REVISED"
	KatchMcArdle           Equation = "KATCH_MCARDLE"
)

// ActivityLevel of the patient.
type ActivityLevel string

const (
	Sedentary ActivityLevel = "SEDENTARY"
	Light     ActivityLevel = "LIGHT"
	Moderate  ActivityLevel = "MODERATE"
	Intense   ActivityLevel = "INTENSE"
	Extreme   ActivityLevel = "EXTREME"
)

var activityMultipliers = map[ActivityLevel]float64{
	Sedentary: 1.2,   // little or no exercise
	Light:     1.375, // 1-3 days/week
	Moderate:  1.55,  // 3-5 days/week
	Intense:   1.725, // 6-7 days/week
	Extreme:   1.9,   // hard training plus physical job
}

// Objective of the diet.
type Objective string

const (
	WeightLoss  Objective = "WEIGHT_LOSS"
	Maintenance Objective = "MAINTENANCE"
	WeightGain  Objective = "WEIGHT_GAIN"
	MuscleGain  Objective = "MUSCLE_GAIN"
)

var objectiveFactors = map[Objective]float64{
	WeightLoss:  0.85,
	Maintenance: 1.0,
	WeightGain:  1.15,
	MuscleGain:  1.20,
}

// BodyParams are the measurements the equations use.
type BodyParams struct {
	Weight  float64 `json:"weight"` // kg
	Height  float64 `json:"height"` // cm
	Age     float64 `json:"age"`
	Gender  Gender  `json:"gender"`
	BodyFat float64 `json:"body_fat,omitempty"` // percent, Katch-McArdle only
}

// CanUseKatchMcArdle reports whether the body fat figure is usable.
func CanUseKatchMcArdle(bodyFat float64) bool {
	return bodyFat > 0 && bodyFat < 50
}

// BasalRate returns kcal/day for the chosen equation. Katch-McArdle falls
// back to Mifflin-St Jeor without a usable body fat figure; an unknown
// equation is an error.
func BasalRate(p BodyParams, eq Equation) (float64, error) {
	male := p.Gender == Male
	switch eq {
	case MifflinStJeor:
		// Published Mifflin-St Jeor coefficients, kept distinct from the
		// revised Harris-Benedict case below.
		if male {
			return 10*p.Weight + 6.25*p.Height - 5*p.Age + 5, nil
		}
		return 10*p.Weight + 6.25*p.Height - 5*p.Age - 161, nil
	case HarrisBenedictOriginal:
		if male {
			return 66.5 + 13.75*p.Weight + 5.003*p.Height - 6.755*p.Age, nil
		}
		return 655.1 + 9.563*p.Weight + 1.850*p.Height - 4.676*p.Age, nil
	case HarrisBenedictRevised:
		if male {
			return 88.362 + 13.397*p.Weight + 4.799*p.Height - 5.677*p.Age, nil
		}
		return 447.593 + 9.247*p.Weight + 3.098*p.Height - 4.330*p.Age, nil
	case KatchMcArdle:
		if !CanUseKatchMcArdle(p.BodyFat) {
			return BasalRate(p, MifflinStJeor)
		}
		lean := p.Weight * (1 - p.BodyFat/100)
		return 370 + 21.6*lean, nil
	}
	return 0, fmt.Errorf("unknown equation %q", eq)
}

// ActivityMultiplier returns the factor for a level.
func ActivityMultiplier(level ActivityLevel) (float64, error) {
	m, ok := activityMultipliers[level]
	if !ok {
		return 0, fmt.Errorf("unknown activity level %q", level)
	}
	return m, nil
}

// Conditions that shift energy needs.
type Conditions struct {
	Pregnant           bool `json:"pregnant"`
	PregnancyTrimester int  `json:"pregnancy_trimester"`
	Lactating          bool `json:"lactating"`
	ExclusiveLactation bool `json:"exclusive_lactation"`
	ThyroidIssues      bool `json:"thyroid_issues"`
	Diabetes           bool `json:"diabetes"`
	MetabolicDisorder  bool `json:"metabolic_disorder"`
}

// ApplyConditions adjusts a basal rate. Additions come before the
// percentage reductions.
func ApplyConditions(bmr float64, c Conditions) float64 {
	adjusted := bmr
	if c.Pregnant {
		switch c.PregnancyTrimester {
		case 2:
			adjusted += 340
		case 3:
			adjusted += 450
		}
	}
	if c.Lactating {
		if c.ExclusiveLactation {
			adjusted += 500
		} else {
			adjusted += 300
		}
	}
	if c.ThyroidIssues {
		adjusted *= 0.9
	}
	if c.MetabolicDisorder {
		adjusted *= 0.95
	}
	return adjusted
}

// TotalExpenditure is the adjusted basal rate times the activity factor.
func TotalExpenditure(bmr float64, level ActivityLevel, c *Conditions) (float64, error) {
	m, err := ActivityMultiplier(level)
	if err != nil {
		return 0, err
	}
	if c != nil {
		bmr = ApplyConditions(bmr, *c)
	}
	return bmr * m, nil
}

// TargetCalories applies the objective's surplus or deficit.
func TargetCalories(tee float64, obj Objective) (float64, error) {
	f, ok := objectiveFactors[obj]
	if !ok {
		return 0, fmt.Errorf("unknown objective %q", obj)
	}
	return tee * f, nil
}

// WaterNeeds returns ml/day: 35 ml/kg plus 500 ml for intense activity.
func WaterNeeds(weight float64, level ActivityLevel) float64 {
	ml := weight * 35
	if level == Intense || level == Extreme {
		ml += 500
	}
	return ml
}
