// portion.go - Nutrient totals for food portions
//
// All composition values on Food are per 100 g of edible portion, the way the
// TACO and IBGE/POF tables publish them.

package nutrition

// Food is the composition data the calculations need.
type Food struct {
	ID         uint    `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	EnergyKcal float64 `json:"energy_kcal"`
	Protein    float64 `json:"protein_g"`
	Lipids     float64 `json:"lipids_g"`
	Carbs      float64 `json:"carbohydrate_g"`
	Fiber      float64 `json:"fiber_g"`
	Sodium     float64 `json:"sodium_mg"`
	Calcium    float64 `json:"calcium_mg"`
	Iron       float64 `json:"iron_mg"`
	Magnesium  float64 `json:"magnesium_mg"`
	Phosphorus float64 `json:"phosphorus_mg"`
	Potassium  float64 `json:"potassium_mg"`
	Zinc       float64 `json:"zinc_mg"`
	VitaminC   float64 `json:"vitamin_c_mg"`
	VitaminA   float64 `json:"vitamin_a_rae_mcg"`
	VitaminE   float64 `json:"vitamin_e_mg"`
	VitaminB12 float64 `json:"vitamin_b12_mcg"`
	Folate     float64 `json:"folate_mcg"`
}

// Portion is an amount of one food, in grams.
type Portion struct {
	Food  Food    `json:"food"`
	Grams float64 `json:"grams"`
}

// Summary holds nutrient totals. Macros in g, minerals in mg, vitamin A,
// B12 and folate in mcg.
type Summary struct {
	Calories   float64 `json:"calories"`
	Protein    float64 `json:"protein"`
	Carbs      float64 `json:"carbs"`
	Fat        float64 `json:"fat"`
	Fiber      float64 `json:"fiber"`
	Sodium     float64 `json:"sodium"`
	Sugar      float64 `json:"sugar"`
	Calcium    float64 `json:"calcium"`
	Iron       float64 `json:"iron"`
	Magnesium  float64 `json:"magnesium"`
	Phosphorus float64 `json:"phosphorus"`
	Potassium  float64 `json:"potassium"`
	Zinc       float64 `json:"zinc"`
	VitaminC   float64 `json:"vitamin_c"`
	VitaminA   float64 `json:"vitamin_a"`
	VitaminE   float64 `json:"vitamin_e"`
	VitaminB12 float64 `json:"vitamin_b12"`
	Folate     float64 `json:"folate"`
}

// sugarShare estimates sugars from total carbohydrate; the tables carry no
// sugar column.
const sugarShare = 0.3

// PortionOf scales a food's composition to the given weight.
func PortionOf(food Food, grams float64) Summary {
	m := grams / 100
	return Summary{
		Calories:   food.EnergyKcal * m,
		Protein:    food.Protein * m,
		Carbs:      food.Carbs * m,
		Fat:        food.Lipids * m,
		Fiber:      food.Fiber * m,
		Sodium:     food.Sodium * m,
		Sugar:      food.Carbs * m * sugarShare,
		Calcium:    food.Calcium * m,
		Iron:       food.Iron * m,
		Magnesium:  food.Magnesium * m,
		Phosphorus: food.Phosphorus * m,
		Potassium:  food.Potassium * m,
		Zinc:       food.Zinc * m,
		VitaminC:   food.VitaminC * m,
		VitaminA:   food.VitaminA * m,
		VitaminE:   food.VitaminE * m,
		VitaminB12: food.VitaminB12 * m,
		Folate:     food.Folate * m,
	}
}

// Add returns the field-wise sum of s and o.
func (s Summary) Add(o Summary) Summary {
	return Summary{
		Calories:   s.Calories + o.Calories,
		Protein:    s.Protein + o.Protein,
		Carbs:      s.Carbs + o.Carbs,
		Fat:        s.Fat + o.Fat,
		Fiber:      s.Fiber + o.Fiber,
		Sodium:     s.Sodium + o.Sodium,
		Sugar:      s.Sugar + o.Sugar,
		Calcium:    s.Calcium + o.Calcium,
		Iron:       s.Iron + o.Iron,
		Magnesium:  s.Magnesium + o.Magnesium,
		Phosphorus: s.Phosphorus + o.Phosphorus,
		Potassium:  s.Potassium + o.Potassium,
		Zinc:       s.Zinc + o.Zinc,
		VitaminC:   s.VitaminC + o.VitaminC,
		VitaminA:   s.VitaminA + o.VitaminA,
		VitaminE:   s.VitaminE + o.VitaminE,
		VitaminB12: s.VitaminB12 + o.VitaminB12,
		Folate:     s.Folate + o.Folate,
	}
}

// Sum totals every portion. An empty slice gives the zero Summary.
func Sum(portions []Portion) Summary {
	var total Summary
	for _, p := range portions {
		total = total.Add(PortionOf(p.Food, p.Grams))
	}
	return total
}

// value looks up a nutrient of the summary by its key.
func (s Summary) value(key string) float64 {
	switch key {
	case "protein":
		return s.Protein
	case "fiber":
		return s.Fiber
	case "calcium":
		return s.Calcium
	case "iron":
		return s.Iron
	case "magnesium":
		return s.Magnesium
	case "phosphorus":
		return s.Phosphorus
	case "potassium":
		return s.Potassium
	case "zinc":
		return s.Zinc
	case "sodium":
		return s.Sodium
	case "vitamin_c":
		return s.VitaminC
	case "vitamin_a":
		return s.VitaminA
	case "vitamin_e":
		return s.VitaminE
	case "vitamin_b12":
		return s.VitaminB12
	case "folate":
		return s.Folate
	case "calories":
		return s.Calories
	case "carbs":
		return s.Carbs
	case "fat":
		return s.Fat
	case "sugar":
		return s.Sugar
	}
	return 0
}

// Nutrient returns a food's per-100 g value for a Summary key; ok is false
// for unknown keys.
func (f Food) Nutrient(key string) (float64, bool) {
	switch key {
	case "calories":
		return f.EnergyKcal, true
	case "protein":
		return f.Protein, true
	case "carbs":
		return f.Carbs, true
	case "fat":
		return f.Lipids, true
	case "fiber":
		return f.Fiber, true
	case "sodium":
		return f.Sodium, true
	case "calcium":
		return f.Calcium, true
	case "iron":
		return f.Iron, true
	case "magnesium":
		return f.Magnesium, true
	case "phosphorus":
		return f.Phosphorus, true
	case "potassium":
		return f.Potassium, true
	case "zinc":
		return f.Zinc, true
	case "vitamin_c":
		return f.VitaminC, true
	case "vitamin_a":
		return f.VitaminA, true
	case "vitamin_e":
		return f.VitaminE, true
	case "vitamin_b12":
		return f.VitaminB12, true
	case "folate":
		return f.Folate, true
	}
	return 0, false
}
