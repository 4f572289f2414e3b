// diet.go - Diet plans prescribed by a nutritionist

package models

import "time"

type Diet struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	PatientID      uint       `gorm:"index;not null" json:"patient_id"`
	NutritionistID uint       `gorm:"index;not null" json:"nutritionist_id"`
	Name           string     `gorm:"not null" json:"name"`
	Description    string     `json:"description"`
	TargetCalories float64    `json:"target_calories"`
	TargetProtein  float64    `json:"target_protein"`
	TargetCarbs    float64    `json:"target_carbs"`
	TargetFat      float64    `json:"target_fat"`
	Calories       int        `json:"calories"` // computed from the items
	Protein        float64    `json:"protein"`
	Carbs          float64    `json:"carbs"`
	Fat            float64    `json:"fat"`
	Fiber          float64    `json:"fiber"`
	IsActive       bool       `gorm:"index" json:"is_active"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	PatientGender  string     `json:"patient_gender"`
	ActiveMeals    string     `json:"active_meals"` // JSON object meal -> bool
	MealTimes      string     `json:"meal_times"`   // JSON object meal -> "HH:MM"
	Meals          []DietMeal `json:"meals"`
	CreatedAt      time.Time  `json:"created_at"`
}

type DietMeal struct {
	ID       uint       `gorm:"primaryKey" json:"id"`
	DietID   uint       `gorm:"index;not null" json:"diet_id"`
	MealType string     `json:"meal_type"` // BREAKFAST, LUNCH, ...
	Name     string     `json:"name"`
	Time     string     `json:"time"`
	Items    []DietItem `json:"items"`
}

type DietItem struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	DietMealID uint    `gorm:"index;not null" json:"diet_meal_id"`
	FoodID     uint    `json:"food_id"`
	FoodName   string  `json:"food_name"`
	Quantity   float64 `json:"quantity"` // grams
	Calories   float64 `json:"calories"`
	Protein    float64 `json:"protein"`
	Carbs      float64 `json:"carbs"`
	Fat        float64 `json:"fat"`
	Notes      string  `json:"notes"`
}
