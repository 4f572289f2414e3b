// foods.go - Food catalog search and nutrition calculators

package handlers

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-nutri-backend/foods"
	"go-nutri-backend/nutrition"
)

// SearchFoods - GET /api/foods?q=&category=&sort=&page=&per_page=
func (a *API) SearchFoods(c *gin.Context) {
	var p foods.SearchParams
	if err := c.ShouldBindQuery(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := a.Foods.Search(c.Request.Context(), p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *API) GetFood(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	f, err := a.Foods.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (a *API) FoodCategories(c *gin.Context) {
	cats, err := a.Foods.Categories(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

// FoodSubstitutions - GET /api/foods/:id/substitutions?nutrient=protein
func (a *API) FoodSubstitutions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	nutrient := c.DefaultQuery("nutrient", "protein")
	if _, known := (nutrition.Food{}).Nutrient(nutrient); !known {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown nutrient " + nutrient})
		return
	}
	list, err := a.Foods.Substitutions(c.Request.Context(), id, nutrient)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nutrient": nutrient, "substitutions": list})
}

// PortionInput references a catalog food by ID.
type PortionInput struct {
	FoodID uint    `json:"food_id" binding:"required"`
	Grams  float64 `json:"grams" binding:"required,gt=0"`
}

type AnalyzeInput struct {
	Portions []PortionInput `json:"portions" binding:"required,min=1,dive"`
	Gender   string         `json:"gender"`
}

// portions resolves inputs against the catalog.
func (a *API) portions(c *gin.Context, in []PortionInput) ([]nutrition.Portion, error) {
	ids := make([]uint, len(in))
	for i, p := range in {
		ids[i] = p.FoodID
	}
	found, err := a.Foods.GetMany(c.Request.Context(), ids)
	if err != nil {
		return nil, err
	}
	out := make([]nutrition.Portion, len(in))
	for i, p := range in {
		out[i] = nutrition.Portion{Food: foods.ToNutrition(found[p.FoodID]), Grams: p.Grams}
	}
	return out, nil
}

// AnalyzeNutrition - POST /api/nutrition/analyze
func (a *API) AnalyzeNutrition(c *gin.Context) {
	var input AnalyzeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	portions, err := a.portions(c, input.Portions)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis": nutrition.AnalyzeMeal(portions, nutrition.ParseGender(input.Gender)),
		"balance":  nutrition.CheckBalance(portions),
	})
}

type EnergyInput struct {
	nutrition.BodyParams
	Equation      nutrition.Equation      `json:"equation"`
	ActivityLevel nutrition.ActivityLevel `json:"activity_level"`
	Objective     nutrition.Objective     `json:"objective"`
	Conditions    *nutrition.Conditions   `json:"conditions"`
	CarbPct       float64                 `json:"carb_pct"`
	ProteinPct    float64                 `json:"protein_pct"`
	FatPct        float64                 `json:"fat_pct"`
}

func (in *EnergyInput) defaults() {
	if in.Equation == "" {
		in.Equation = nutrition.MifflinStJeor
	}
	if in.ActivityLevel == "" {
		in.ActivityLevel = nutrition.Sedentary
	}
	if in.Objective == "" {
		in.Objective = nutrition.Maintenance
	}
	if in.CarbPct == 0 && in.ProteinPct == 0 && in.FatPct == 0 {
		in.CarbPct, in.ProteinPct, in.FatPct = 50, 20, 30
	}
	in.Gender = nutrition.ParseGender(string(in.Gender))
}

// EnergyNeeds - POST /api/nutrition/energy
func (a *API) EnergyNeeds(c *gin.Context) {
	var input EnergyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.defaults()
	if input.Weight <= 0 || input.Height <= 0 || input.Age <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "weight, height and age must be positive"})
		return
	}
	if math.Abs(input.CarbPct+input.ProteinPct+input.FatPct-100) > 0.01 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "macro percentages must add up to 100"})
		return
	}

	bmr, err := nutrition.BasalRate(input.BodyParams, input.Equation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tee, err := nutrition.TotalExpenditure(bmr, input.ActivityLevel, input.Conditions)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, err := nutrition.TargetCalories(tee, input.Objective)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	equation := input.Equation
	if equation == nutrition.KatchMcArdle && !nutrition.CanUseKatchMcArdle(input.BodyFat) {
		equation = nutrition.MifflinStJeor
	}
	c.JSON(http.StatusOK, gin.H{
		"equation":        equation,
		"bmr":             math.Round(bmr),
		"tee":             math.Round(tee),
		"target_calories": math.Round(target),
		"macros":          nutrition.MacroGrams(target, input.CarbPct, input.ProteinPct, input.FatPct),
		"water_ml":        math.Round(nutrition.WaterNeeds(input.Weight, input.ActivityLevel)),
	})
}
