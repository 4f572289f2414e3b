// food.go - Food composition record (values per 100 g)

package models

import "time"

type Food struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	Code                  string    `gorm:"uniqueIndex;not null" json:"code"` // e.g. IBGE001, TACO123
	Source                string    `gorm:"index" json:"source"`              // IBGE, TACO
	Name                  string    `gorm:"index;not null" json:"name"`
	EnglishName           string    `json:"english_name"`
	Category              string    `gorm:"index" json:"category"`
	GroupID               int       `json:"group_id"`
	EnergyKcal            float64   `json:"energy_kcal"`
	EnergyKJ              float64   `json:"energy_kj"`
	Protein               float64   `json:"protein_g"`
	Lipids                float64   `json:"lipids_g"`
	Carbohydrate          float64   `json:"carbohydrate_g"`
	AvailableCarbohydrate float64   `json:"available_carbohydrate_g"`
	Fiber                 float64   `json:"fiber_g"`
	Calcium               float64   `json:"calcium_mg"`
	Magnesium             float64   `json:"magnesium_mg"`
	Phosphorus            float64   `json:"phosphorus_mg"`
	Iron                  float64   `json:"iron_mg"`
	Sodium                float64   `json:"sodium_mg"`
	Potassium             float64   `json:"potassium_mg"`
	Zinc                  float64   `json:"zinc_mg"`
	VitaminC              float64   `json:"vitamin_c_mg"`
	VitaminA              float64   `json:"vitamin_a_rae_mcg"`
	VitaminE              float64   `json:"vitamin_e_mg"`
	VitaminB12            float64   `json:"vitamin_b12_mcg"`
	Folate                float64   `json:"folate_mcg"`
	Tags                  string    `json:"tags"` // comma separated
	UpdatedAt             time.Time `json:"updated_at"`
}
