// dataset.go - IBGE/POF food composition dataset file format
//
// The JSON keys are the ones the frontend and the extraction tooling
// already use, so they stay in Portuguese.

package ibge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go-nutri-backend/models"
)

// Source marks foods coming from this dataset.
const Source = "IBGE"

// Food is one entry of the dataset, values per 100 g.
type Food struct {
	ID                    int      `json:"id"`
	Code                  string   `json:"codigo"`
	Source                string   `json:"fonte"`
	Name                  string   `json:"nome"`
	EnglishName           string   `json:"nomeIngles"`
	Category              string   `json:"categoria"`
	GroupID               int      `json:"grupoId"`
	EnergyKcal            float64  `json:"energia_kcal"`
	EnergyKJ              float64  `json:"energia_kj"`
	Protein               float64  `json:"proteina_g"`
	Lipids                float64  `json:"lipidios_g"`
	Carbohydrate          float64  `json:"carboidrato_g"`
	AvailableCarbohydrate float64  `json:"carboidrato_disponivel_g"`
	Fiber                 float64  `json:"fibra_alimentar_g"`
	Calcium               float64  `json:"calcio_mg"`
	Magnesium             float64  `json:"magnesio_mg"`
	Phosphorus            float64  `json:"fosforo_mg"`
	Iron                  float64  `json:"ferro_mg"`
	Sodium                float64  `json:"sodio_mg"`
	Potassium             float64  `json:"potassio_mg"`
	Zinc                  float64  `json:"zinco_mg"`
	VitaminC              float64  `json:"vitamina_c_mg"`
	VitaminA              float64  `json:"rae_mcg"`
	VitaminE              float64  `json:"vitamina_e_mg"`
	VitaminB12            float64  `json:"vitamina_b12_mcg"`
	Folate                float64  `json:"folato_mcg"`
	Tags                  []string `json:"tags"`
}

// Dataset is the whole file.
type Dataset struct {
	Version     string         `json:"version,omitempty"`
	LastUpdated string         `json:"lastUpdated,omitempty"`
	TotalFoods  int            `json:"totalFoods"`
	Categories  []string       `json:"categorias"`
	Stats       map[string]int `json:"estatisticas"`
	Foods       []Food         `json:"alimentos"`
}

// Finalize recomputes the derived fields from Foods.
func (d *Dataset) Finalize(now time.Time) {
	d.Stats = make(map[string]int)
	for _, f := range d.Foods {
		d.Stats[f.Category]++
	}
	d.Categories = make([]string, 0, len(d.Stats))
	for c := range d.Stats {
		d.Categories = append(d.Categories, c)
	}
	sort.Strings(d.Categories)
	d.TotalFoods = len(d.Foods)
	d.LastUpdated = now.Format("2006-01-02")
}

// LoadDataset reads a dataset file.
func LoadDataset(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ds Dataset
	if err := json.Unmarshal(b, &ds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &ds, nil
}

// WriteDataset writes ds as indented JSON, creating parent directories.
func WriteDataset(path string, ds *Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Backup copies path next to itself as <name>_backup_<timestamp>.json and
// returns the new path. A missing source is not an error and returns "".
func Backup(path string, now time.Time) (string, error) {
	src, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer src.Close()

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stamp := now.UTC().Format("2006-01-02T15-04-05-000Z")
	dst := filepath.Join(filepath.Dir(path), fmt.Sprintf("%s_backup_%s.json", base, stamp))

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", err
	}
	return dst, out.Close()
}

// ToModel maps a dataset entry to the stored record.
func ToModel(f Food) models.Food {
	source := f.Source
	if source == "" {
		source = Source
	}
	return models.Food{
		Code:                  f.Code,
		Source:                source,
		Name:                  f.Name,
		EnglishName:           f.EnglishName,
		Category:              f.Category,
		GroupID:               f.GroupID,
		EnergyKcal:            f.EnergyKcal,
		EnergyKJ:              f.EnergyKJ,
		Protein:               f.Protein,
		Lipids:                f.Lipids,
		Carbohydrate:          f.Carbohydrate,
		AvailableCarbohydrate: f.AvailableCarbohydrate,
		Fiber:                 f.Fiber,
		Calcium:               f.Calcium,
		Magnesium:             f.Magnesium,
		Phosphorus:            f.Phosphorus,
		Iron:                  f.Iron,
		Sodium:                f.Sodium,
		Potassium:             f.Potassium,
		Zinc:                  f.Zinc,
		VitaminC:              f.VitaminC,
		VitaminA:              f.VitaminA,
		VitaminE:              f.VitaminE,
		VitaminB12:            f.VitaminB12,
		Folate:                f.Folate,
		Tags:                  strings.Join(f.Tags, ","),
	}
}
