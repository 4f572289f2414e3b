// patients.go - Patient registry, consultations and access checks

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"go-nutri-backend/logger"
	"go-nutri-backend/middleware"
	"go-nutri-backend/models"
	"go-nutri-backend/nutrition"
	"go-nutri-backend/textnorm"
)

// profileOf loads the patient profile of a patient user.
func (a *API) profileOf(userID uint) (models.Patient, error) {
	var p models.Patient
	err := a.DB.Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, fmt.Errorf("patient profile %w", errNotFound)
	}
	return p, err
}

// patientFor loads a patient the caller may see: admins see everyone,
// nutritionists their own patients, patients only themselves.
func (a *API) patientFor(c *gin.Context, patientID uint) (models.Patient, error) {
	var p models.Patient
	err := a.DB.Preload("User").First(&p, patientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, fmt.Errorf("patient %w", errNotFound)
	}
	if err != nil {
		return p, err
	}
	uid := middleware.UserID(c)
	switch middleware.Role(c) {
	case models.RoleAdmin:
		return p, nil
	case models.RoleNutritionist:
		if p.NutritionistID == uid {
			return p, nil
		}
	case models.RolePatient:
		if p.UserID == uid {
			return p, nil
		}
	}
	return p, errForbidden
}

// targetPatient resolves whose records a request is about: patients act on
// themselves, staff must name the patient with ?patient_id= or the body.
func (a *API) targetPatient(c *gin.Context, patientID uint) (models.Patient, error) {
	if middleware.Role(c) == models.RolePatient {
		return a.profileOf(middleware.UserID(c))
	}
	if patientID == 0 {
		return models.Patient{}, errMissingPatient
	}
	return a.patientFor(c, patientID)
}

var errMissingPatient = errors.New("patient_id is required")

// failPatient is fail plus the 400 for a missing patient_id.
func failPatient(c *gin.Context, err error) {
	if errors.Is(err, errMissingPatient) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fail(c, err)
}

type PatientInput struct {
	Name           string     `json:"name" binding:"required"`
	Email          string     `json:"email" binding:"required,email"`
	Password       string     `json:"password" binding:"required,min=6"`
	BirthDate      *time.Time `json:"birth_date"`
	Height         float64    `json:"height" binding:"gte=0"`
	Weight         float64    `json:"weight" binding:"gte=0"`
	Gender         string     `json:"gender"`
	Objective      string     `json:"objective"`
	NutritionistID uint       `json:"nutritionist_id"` // admins only
}

// CreatePatient - POST /api/patients creates the login and the profile together.
func (a *API) CreatePatient(c *gin.Context) {
	var input PatientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	owner := middleware.UserID(c)
	if middleware.Role(c) == models.RoleAdmin {
		if input.NutritionistID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nutritionist_id is required"})
			return
		}
		owner = input.NutritionistID
	}

	email := normalizeEmail(input.Email)
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(c, err)
		return
	}

	gender := ""
	if input.Gender != "" {
		gender = string(nutrition.ParseGender(input.Gender))
	}

	var patient models.Patient
	err = a.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errEmailTaken
		}
		user := models.User{Name: strings.TrimSpace(input.Name), Email: email, Password: string(hash), Role: models.RolePatient}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		patient = models.Patient{
			UserID:         user.ID,
			User:           user,
			NutritionistID: owner,
			BirthDate:      input.BirthDate,
			Height:         input.Height,
			Weight:         input.Weight,
			Gender:         gender,
			Objective:      input.Objective,
		}
		return tx.Omit("User").Create(&patient).Error
	})
	if errors.Is(err, errEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	logger.L().Infow("patient created", "patient_id", patient.ID, "nutritionist_id", owner)
	c.JSON(http.StatusCreated, patient)
}

var errEmailTaken = errors.New("email already registered")

// ListPatients - GET /api/patients?q= filters by name, accents ignored.
func (a *API) ListPatients(c *gin.Context) {
	q := a.DB.Preload("User").Order("created_at desc")
	if middleware.Role(c) != models.RoleAdmin {
		q = q.Where("nutritionist_id = ?", middleware.UserID(c))
	}
	var list []models.Patient
	if err := q.Find(&list).Error; err != nil {
		fail(c, err)
		return
	}
	if term := strings.TrimSpace(c.Query("q")); term != "" {
		kept := list[:0]
		for _, p := range list {
			if textnorm.Contains(p.User.Name, term) {
				kept = append(kept, p)
			}
		}
		list = kept
	}
	c.JSON(http.StatusOK, gin.H{"patients": list, "total": len(list)})
}

type ConsultationInput struct {
	PatientID uint       `json:"patient_id" binding:"required"`
	Date      *time.Time `json:"date"`
	Weight    float64    `json:"weight" binding:"gte=0"`
	BodyFat   float64    `json:"body_fat" binding:"gte=0,lt=100"`
	Notes     string     `json:"notes"`
}

// CreateConsultation - POST /api/consultations; a measured weight becomes
// the patient's current weight.
func (a *API) CreateConsultation(c *gin.Context) {
	var input ConsultationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patient, err := a.patientFor(c, input.PatientID)
	if err != nil {
		fail(c, err)
		return
	}
	date := time.Now()
	if input.Date != nil {
		date = *input.Date
	}
	cons := models.Consultation{
		PatientID:      patient.ID,
		NutritionistID: patient.NutritionistID,
		Date:           date,
		Weight:         input.Weight,
		BodyFat:        input.BodyFat,
		Notes:          input.Notes,
	}
	err = a.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&cons).Error; err != nil {
			return err
		}
		if input.Weight > 0 {
			return tx.Model(&models.Patient{}).Where("id = ?", patient.ID).Update("weight", input.Weight).Error
		}
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cons)
}

// ListConsultations - GET /api/consultations?patient_id=, newest first.
func (a *API) ListConsultations(c *gin.Context) {
	id, ok := uintQuery(c, "patient_id")
	if !ok {
		return
	}
	patient, err := a.targetPatient(c, id)
	if err != nil {
		failPatient(c, err)
		return
	}
	var list []models.Consultation
	if err := a.DB.Where("patient_id = ?", patient.ID).Order("date desc").Find(&list).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultations": list})
}
