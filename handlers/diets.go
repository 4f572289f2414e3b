// diets.go - Diet plans: save with computed totals, fetch the active one

package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"go-nutri-backend/logger"
	"go-nutri-backend/models"
	"go-nutri-backend/nutrition"
)

var mealNames = map[string]string{
	nutrition.Breakfast:      "Breakfast",
	nutrition.MorningSnack:   "Morning snack",
	nutrition.Lunch:          "Lunch",
	nutrition.AfternoonSnack: "Afternoon snack",
	nutrition.Dinner:         "Dinner",
	nutrition.Supper:         "Supper",
}

const defaultMealTime = "12:00"

type DietItemInput struct {
	Meal     string  `json:"meal" binding:"required"`
	FoodID   uint    `json:"food_id" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"` // grams
	Notes    string  `json:"notes"`
}

type TargetInput struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

type DietInput struct {
	PatientID   uint              `json:"patient_id" binding:"required"`
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Target      TargetInput       `json:"target_nutrition"`
	Items       []DietItemInput   `json:"items" binding:"required,min=1,dive"`
	Gender      string            `json:"patient_gender"`
	ActiveMeals map[string]bool   `json:"active_meals"`
	MealTimes   map[string]string `json:"meal_times"`
}

// SaveDiet - POST /api/diets
//
// Totals come from the catalog, not from the client. The patient's current
// active diet is closed in the same transaction.
func (a *API) SaveDiet(c *gin.Context) {
	var input DietInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patient, err := a.patientFor(c, input.PatientID)
	if err != nil {
		fail(c, err)
		return
	}

	// STEP 1: Resolve foods and validate meal keys
	refs := make([]PortionInput, len(input.Items))
	for i, it := range input.Items {
		it.Meal = strings.ToLower(strings.TrimSpace(it.Meal))
		if _, ok := mealNames[it.Meal]; !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown meal " + it.Meal})
			return
		}
		input.Items[i] = it
		refs[i] = PortionInput{FoodID: it.FoodID, Grams: it.Quantity}
	}
	portions, err := a.portions(c, refs)
	if err != nil {
		fail(c, err)
		return
	}
	gender := nutrition.ParseGender(input.Gender)
	if input.Gender == "" && patient.Gender != "" {
		gender = nutrition.ParseGender(patient.Gender)
	}

	// STEP 2: Build meals in serving order
	diet := buildDiet(input, portions)
	diet.PatientID = patient.ID
	diet.NutritionistID = patient.NutritionistID
	diet.PatientGender = string(gender)

	// STEP 3: Close the previous plan and store the new one
	now := time.Now()
	diet.StartDate = now
	err = a.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Diet{}).
			Where("patient_id = ? AND is_active = ?", patient.ID, true).
			Updates(map[string]interface{}{"is_active": false, "end_date": now}).Error
		if err != nil {
			return err
		}
		return tx.Create(&diet).Error
	})
	if err != nil {
		fail(c, err)
		return
	}
	logger.L().Infow("diet saved", "diet_id", diet.ID, "patient_id", patient.ID, "calories", diet.Calories)

	target := input.Target.Calories
	if target <= 0 {
		target = float64(diet.Calories)
	}
	c.JSON(http.StatusCreated, gin.H{
		"diet":         diet,
		"analysis":     nutrition.AnalyzeMeal(portions, gender),
		"balance":      nutrition.CheckBalance(portions),
		"distribution": nutrition.MealCalorieDistribution(target, input.ActiveMeals),
	})
}

// buildDiet computes item, meal and diet totals. Item and diet calories are
// whole numbers, macros keep one decimal.
func buildDiet(input DietInput, portions []nutrition.Portion) models.Diet {
	byMeal := map[string][]int{}
	for i, it := range input.Items {
		byMeal[it.Meal] = append(byMeal[it.Meal], i)
	}

	var total nutrition.Summary
	var meals []models.DietMeal
	for _, key := range nutrition.MealOrder {
		idx, ok := byMeal[key]
		if !ok {
			continue
		}
		meal := models.DietMeal{
			MealType: strings.ToUpper(key),
			Name:     mealNames[key],
			Time:     defaultMealTime,
		}
		if t := input.MealTimes[key]; t != "" {
			meal.Time = t
		}
		for _, i := range idx {
			s := nutrition.PortionOf(portions[i].Food, portions[i].Grams)
			total = total.Add(s)
			meal.Items = append(meal.Items, models.DietItem{
				FoodID:   portions[i].Food.ID,
				FoodName: portions[i].Food.Name,
				Quantity: portions[i].Grams,
				Calories: math.Round(s.Calories),
				Protein:  round1(s.Protein),
				Carbs:    round1(s.Carbs),
				Fat:      round1(s.Fat),
				Notes:    input.Items[i].Notes,
			})
		}
		meals = append(meals, meal)
	}

	active, _ := json.Marshal(input.ActiveMeals)
	times, _ := json.Marshal(input.MealTimes)
	return models.Diet{
		Name:           strings.TrimSpace(input.Name),
		Description:    input.Description,
		TargetCalories: input.Target.Calories,
		TargetProtein:  input.Target.Protein,
		TargetCarbs:    input.Target.Carbs,
		TargetFat:      input.Target.Fat,
		Calories:       int(math.Round(total.Calories)),
		Protein:        round1(total.Protein),
		Carbs:          round1(total.Carbs),
		Fat:            round1(total.Fat),
		Fiber:          round1(total.Fiber),
		IsActive:       true,
		ActiveMeals:    string(active),
		MealTimes:      string(times),
		Meals:          meals,
	}
}

// ActiveDiet - GET /api/diets/active?patient_id=
func (a *API) ActiveDiet(c *gin.Context) {
	id, ok := uintQuery(c, "patient_id")
	if !ok {
		return
	}
	patient, err := a.targetPatient(c, id)
	if err != nil {
		failPatient(c, err)
		return
	}
	var diet models.Diet
	err = a.DB.Preload("Meals", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Meals.Items").
		Where("patient_id = ? AND is_active = ?", patient.ID, true).
		Order("start_date desc").First(&diet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active diet"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, diet)
}
