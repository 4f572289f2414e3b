package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-nutri-backend/foods"
	"go-nutri-backend/models"
	"go-nutri-backend/nutrition"
)

func TestFoodCatalogEndpoints(t *testing.T) {
	env := newEnv(t)
	_, token := env.user(models.RoleNutritionist)
	apple := env.food("Maçã, Fuji, com casca, crua", "Frutas e derivados", 56, 0.3, 15.2, 0)
	env.food("Banana, prata, crua", "Frutas e derivados", 98, 1.3, 26, 0.1)
	env.food("Leite, integral", "Leite e derivados", 60, 3.2, 4.7, 3.3)

	w := env.do(http.MethodGet, "/api/foods?q=maca", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res foods.SearchResult
	decode(t, w, &res)
	require.Equal(t, 1, res.TotalCount)
	assert.Equal(t, apple.ID, res.Foods[0].ID)

	decode(t, env.do(http.MethodGet, "/api/foods?category=Frutas%20e%20derivados&per_page=1", token, nil), &res)
	assert.Equal(t, 2, res.TotalCount)
	assert.Len(t, res.Foods, 1)
	assert.True(t, res.HasMore)

	w = env.do(http.MethodGet, fmt.Sprintf("/api/foods/%d", apple.ID), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/foods/999", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/foods/abc", token, nil).Code)

	var cats struct {
		Categories []string `json:"categories"`
	}
	decode(t, env.do(http.MethodGet, "/api/foods/categories", token, nil), &cats)
	assert.Equal(t, []string{"Frutas e derivados", "Leite e derivados"}, cats.Categories)

	w = env.do(http.MethodGet, fmt.Sprintf("/api/foods/%d/substitutions?nutrient=caffeine", apple.ID), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodGet, fmt.Sprintf("/api/foods/%d/substitutions", apple.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"nutrient":"protein"`)

	// Anonymous callers are turned away
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/foods", "", nil).Code)
}

func TestAnalyzeNutrition(t *testing.T) {
	env := newEnv(t)
	_, token := env.user(models.RolePatient)
	rice := env.food("Arroz, tipo 1, cozido", "Cereais e derivados", 128, 2.5, 28.1, 0.2)

	w := env.do(http.MethodPost, "/api/nutrition/analyze", token, gin.H{
		"portions": []gin.H{{"food_id": rice.ID, "grams": 200}},
		"gender":   "male",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Analysis nutrition.MealAnalysis `json:"analysis"`
		Balance  nutrition.Balance      `json:"balance"`
	}
	decode(t, w, &out)
	assert.InDelta(t, 256, out.Analysis.Total.Calories, 0.001)
	assert.NotEmpty(t, out.Analysis.Adequacy)

	w = env.do(http.MethodPost, "/api/nutrition/analyze", token, gin.H{"portions": []gin.H{{"food_id": 999, "grams": 10}}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(http.MethodPost, "/api/nutrition/analyze", token, gin.H{"portions": []gin.H{{"food_id": rice.ID, "grams": 0}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnergyNeeds(t *testing.T) {
	env := newEnv(t)
	_, token := env.user(models.RoleNutritionist)

	// Mifflin-St Jeor, male: 10*70 + 6.25*175 - 5*30 + 5 = 1648.75
	w := env.do(http.MethodPost, "/api/nutrition/energy", token, gin.H{
		"weight": 70, "height": 175, "age": 30, "gender": "male", "activity_level": "MODERATE",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Equation       nutrition.Equation `json:"equation"`
		BMR            float64            `json:"bmr"`
		TEE            float64            `json:"tee"`
		TargetCalories float64            `json:"target_calories"`
		Macros         nutrition.Macros   `json:"macros"`
		WaterML        float64            `json:"water_ml"`
	}
	decode(t, w, &out)
	assert.Equal(t, nutrition.MifflinStJeor, out.Equation)
	assert.Equal(t, 1649.0, out.BMR)
	assert.Equal(t, 2556.0, out.TEE)
	assert.Equal(t, 2556.0, out.TargetCalories)
	assert.Equal(t, nutrition.Macros{Carbs: 319, Protein: 128, Fat: 85}, out.Macros)
	assert.Equal(t, 2450.0, out.WaterML)

	// Katch-McArdle without body fat falls back
	w = env.do(http.MethodPost, "/api/nutrition/energy", token, gin.H{
		"weight": 70, "height": 175, "age": 30, "equation": "KATCH_MCARDLE",
	})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &out)
	assert.Equal(t, nutrition.MifflinStJeor, out.Equation)

	for name, body := range map[string]gin.H{
		"missing weight":  {"height": 175, "age": 30},
		"bad percentages": {"weight": 70, "height": 175, "age": 30, "carb_pct": 50, "protein_pct": 30, "fat_pct": 30},
		"bad equation":    {"weight": 70, "height": 175, "age": 30, "equation": "GUESS"},
		"bad activity":    {"weight": 70, "height": 175, "age": 30, "activity_level": "COUCH"},
	} {
		w := env.do(http.MethodPost, "/api/nutrition/energy", token, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}
