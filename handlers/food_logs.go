// food_logs.go - What patients ate, per day and meal

package handlers

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"go-nutri-backend/foods"
	"go-nutri-backend/models"
	"go-nutri-backend/nutrition"
)

const dateLayout = "2006-01-02"

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type FoodLogInput struct {
	PatientID uint    `json:"patient_id"` // staff only
	Date      string  `json:"date"`       // YYYY-MM-DD, today when empty
	MealType  string  `json:"meal_type" binding:"required"`
	FoodID    uint    `json:"food_id"` // fills name and nutrients from the catalog
	FoodName  string  `json:"food_name"`
	Quantity  float64 `json:"quantity" binding:"gte=0"`
	Unit      string  `json:"unit"`
	Calories  float64 `json:"calories" binding:"gte=0"`
	Protein   float64 `json:"protein" binding:"gte=0"`
	Carbs     float64 `json:"carbs" binding:"gte=0"`
	Fat       float64 `json:"fat" binding:"gte=0"`
	Fiber     float64 `json:"fiber" binding:"gte=0"`
	Notes     string  `json:"notes"`
}

// CreateFoodLog - POST /api/food-logs
func (a *API) CreateFoodLog(c *gin.Context) {
	var input FoodLogInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patient, err := a.targetPatient(c, input.PatientID)
	if err != nil {
		failPatient(c, err)
		return
	}

	date := day(time.Now())
	if input.Date != "" {
		d, err := time.Parse(dateLayout, input.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = d
	}

	entry := models.FoodLog{
		PatientID: patient.ID,
		Date:      date,
		MealType:  strings.ToLower(strings.TrimSpace(input.MealType)),
		FoodName:  strings.TrimSpace(input.FoodName),
		Quantity:  input.Quantity,
		Unit:      input.Unit,
		Calories:  input.Calories,
		Protein:   input.Protein,
		Carbs:     input.Carbs,
		Fat:       input.Fat,
		Fiber:     input.Fiber,
		Notes:     input.Notes,
	}
	if input.FoodID != 0 {
		if input.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity in grams is required with food_id"})
			return
		}
		f, err := a.Foods.Get(c.Request.Context(), input.FoodID)
		if err != nil {
			fail(c, err)
			return
		}
		s := nutrition.PortionOf(foods.ToNutrition(f), input.Quantity)
		entry.FoodName = f.Name
		entry.Unit = "g"
		entry.Calories = round1(s.Calories)
		entry.Protein = round1(s.Protein)
		entry.Carbs = round1(s.Carbs)
		entry.Fat = round1(s.Fat)
		entry.Fiber = round1(s.Fiber)
	}
	if entry.FoodName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "food_name or food_id is required"})
		return
	}

	if err := a.DB.Create(&entry).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// DayTotals sums one day of logs.
type DayTotals struct {
	Date     string  `json:"date"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
}

// ListFoodLogs - GET /api/food-logs?patient_id=&date= or &start_date=&end_date=
func (a *API) ListFoodLogs(c *gin.Context) {
	id, ok := uintQuery(c, "patient_id")
	if !ok {
		return
	}
	patient, err := a.targetPatient(c, id)
	if err != nil {
		failPatient(c, err)
		return
	}

	q := a.DB.Where("patient_id = ?", patient.ID)
	parse := func(name string) (time.Time, bool) {
		t, err := time.Parse(dateLayout, c.Query(name))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be YYYY-MM-DD"})
			return t, false
		}
		return t, true
	}
	switch {
	case c.Query("date") != "":
		d, ok := parse("date")
		if !ok {
			return
		}
		q = q.Where("date >= ? AND date < ?", d, d.AddDate(0, 0, 1))
	default:
		if c.Query("start_date") != "" {
			d, ok := parse("start_date")
			if !ok {
				return
			}
			q = q.Where("date >= ?", d)
		}
		if c.Query("end_date") != "" {
			d, ok := parse("end_date")
			if !ok {
				return
			}
			q = q.Where("date < ?", d.AddDate(0, 0, 1))
		}
	}

	var logs []models.FoodLog
	if err := q.Order("date desc").Order("created_at asc").Find(&logs).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "totals": dailyTotals(logs)})
}

// dailyTotals returns one entry per day, newest first.
func dailyTotals(logs []models.FoodLog) []DayTotals {
	out := []DayTotals{}
	index := map[string]int{}
	for _, l := range logs {
		key := l.Date.UTC().Format(dateLayout)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, DayTotals{Date: key})
		}
		out[i].Calories += l.Calories
		out[i].Protein += l.Protein
		out[i].Carbs += l.Carbs
		out[i].Fat += l.Fat
		out[i].Fiber += l.Fiber
	}
	for i := range out {
		out[i].Calories = round1(out[i].Calories)
		out[i].Protein = round1(out[i].Protein)
		out[i].Carbs = round1(out[i].Carbs)
		out[i].Fat = round1(out[i].Fat)
		out[i].Fiber = round1(out[i].Fiber)
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
