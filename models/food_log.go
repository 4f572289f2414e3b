// food_log.go - What a patient actually ate

package models

import "time"

type FoodLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PatientID uint      `gorm:"index;not null" json:"patient_id"`
	Date      time.Time `gorm:"index;not null" json:"date"` // truncated to the day
	MealType  string    `gorm:"not null" json:"meal_type"`
	FoodName  string    `gorm:"not null" json:"food_name"`
	Quantity  float64   `json:"quantity"`
	Unit      string    `json:"unit"`
	Calories  float64   `json:"calories"`
	Protein   float64   `json:"protein"`
	Carbs     float64   `json:"carbs"`
	Fat       float64   `json:"fat"`
	Fiber     float64   `json:"fiber"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}
