package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-nutri-backend/models"
)

type savedDiet struct {
	Diet         models.Diet    `json:"diet"`
	Distribution map[string]int `json:"distribution"`
}

func TestSaveDietComputesTotals(t *testing.T) {
	env := newEnv(t)
	n, nToken := env.user(models.RoleNutritionist)
	p, pToken := env.patient(n.ID)
	rice := env.food("Arroz, tipo 1, cozido", "Cereais e derivados", 128, 2.5, 28.1, 0.2)
	chicken := env.food("Frango, peito, sem pele, grelhado", "Carnes e derivados", 159, 32, 0, 2.5)

	w := env.do(http.MethodPost, "/api/diets", nToken, gin.H{
		"patient_id":       p.ID,
		"name":             " Cutting plan ",
		"target_nutrition": gin.H{"calories": 1800},
		"items": []gin.H{
			{"meal": "dinner", "food_id": rice.ID, "quantity": 100},
			{"meal": "LUNCH", "food_id": rice.ID, "quantity": 150, "notes": "no salt"},
			{"meal": "lunch", "food_id": chicken.ID, "quantity": 120},
		},
		"meal_times": gin.H{"lunch": "12:30"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out savedDiet
	decode(t, w, &out)

	d := out.Diet
	assert.Equal(t, "Cutting plan", d.Name)
	assert.True(t, d.IsActive)
	assert.Equal(t, n.ID, d.NutritionistID)
	assert.Equal(t, 511, d.Calories) // 192 + 190.8 + 128
	assert.Equal(t, "female", d.PatientGender)

	// Meals in serving order regardless of input order
	require.Len(t, d.Meals, 2)
	assert.Equal(t, "LUNCH", d.Meals[0].MealType)
	assert.Equal(t, "12:30", d.Meals[0].Time)
	assert.Equal(t, "DINNER", d.Meals[1].MealType)
	assert.Equal(t, defaultMealTime, d.Meals[1].Time)
	require.Len(t, d.Meals[0].Items, 2)
	assert.Equal(t, 192.0, d.Meals[0].Items[0].Calories)
	assert.Equal(t, "no salt", d.Meals[0].Items[0].Notes)
	assert.Equal(t, 191.0, d.Meals[0].Items[1].Calories)
	assert.Equal(t, 38.4, d.Meals[0].Items[1].Protein)

	assert.NotEmpty(t, out.Distribution)

	// The patient sees the plan as their active diet
	w = env.do(http.MethodGet, "/api/diets/active", pToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active models.Diet
	decode(t, w, &active)
	assert.Equal(t, d.ID, active.ID)
	require.Len(t, active.Meals, 2)
	assert.Len(t, active.Meals[0].Items, 2)
}

func TestSaveDietReplacesActivePlan(t *testing.T) {
	env := newEnv(t)
	n, nToken := env.user(models.RoleNutritionist)
	p, _ := env.patient(n.ID)
	rice := env.food("Arroz, tipo 1, cozido", "Cereais e derivados", 128, 2.5, 28.1, 0.2)

	var ids []uint
	for _, name := range []string{"Week 1", "Week 2"} {
		w := env.do(http.MethodPost, "/api/diets", nToken, gin.H{
			"patient_id": p.ID, "name": name,
			"items": []gin.H{{"meal": "breakfast", "food_id": rice.ID, "quantity": 50}},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var out savedDiet
		decode(t, w, &out)
		ids = append(ids, out.Diet.ID)
	}

	var first, second models.Diet
	require.NoError(t, env.db.First(&first, ids[0]).Error)
	require.NoError(t, env.db.First(&second, ids[1]).Error)
	assert.False(t, first.IsActive)
	assert.NotNil(t, first.EndDate)
	assert.True(t, second.IsActive)

	var active int64
	env.db.Model(&models.Diet{}).Where("patient_id = ? AND is_active = ?", p.ID, true).Count(&active)
	assert.Equal(t, int64(1), active)
}

func TestSaveDietValidation(t *testing.T) {
	env := newEnv(t)
	n, nToken := env.user(models.RoleNutritionist)
	_, otherToken := env.user(models.RoleNutritionist)
	p, _ := env.patient(n.ID)
	rice := env.food("Arroz, tipo 1, cozido", "Cereais e derivados", 128, 2.5, 28.1, 0.2)

	item := func(meal string, foodID uint) gin.H {
		return gin.H{"patient_id": p.ID, "name": "Plan", "items": []gin.H{{"meal": meal, "food_id": foodID, "quantity": 100}}}
	}
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/diets", nToken, item("brunch", rice.ID)).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/diets", nToken, item("lunch", 9999)).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/api/diets", otherToken, item("lunch", rice.ID)).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/diets", nToken,
		gin.H{"patient_id": p.ID, "name": "Empty", "items": []gin.H{}}).Code)

	var count int64
	env.db.Model(&models.Diet{}).Count(&count)
	assert.Zero(t, count)
}

func TestActiveDietNotFound(t *testing.T) {
	env := newEnv(t)
	n, _ := env.user(models.RoleNutritionist)
	_, pToken := env.patient(n.ID)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/diets/active", pToken, nil).Code)
}
