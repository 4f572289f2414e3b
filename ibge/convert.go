// convert.go - Conversion, cleanup and merge of IBGE food lists

package ibge

import (
	"fmt"
	"math"
	"strings"

	"go-nutri-backend/textnorm"

	mapset "github.com/deckarep/golang-set/v2"
)

// FirstID is the first ID given to converted foods, clear of the TACO range.
const FirstID = 7001

// MiscGroup is the group for categories with no known ID.
const MiscGroup = 12

var groupIDs = map[string]int{
	"Cereais e Produtos de Cereais":      1,
	"Hortaliças":                         2,
	"Frutas e Produtos de Frutas":        3,
	"Óleos e Gorduras":                   4,
	"Peixes e Frutos do Mar":             5,
	"Carnes e Produtos Cárneos":          6,
	"Leite e Produtos Lácteos":           7,
	"Bebidas":                            8,
	"Ovos e Derivados":                   9,
	"Açúcares e Produtos de Confeitaria": 10,
	"Oleaginosas":                        10,
	"Leguminosas":                        11,
	"Diversos":                           MiscGroup,
}

var normalizedGroups = func() map[string]int {
	m := make(map[string]int, len(groupIDs))
	for k, v := range groupIDs {
		m[textnorm.Normalize(k)] = v
	}
	return m
}()

// GroupID maps a category name to its group, ignoring case and accents.
func GroupID(category string) int {
	if id, ok := normalizedGroups[textnorm.Normalize(category)]; ok {
		return id
	}
	return MiscGroup
}

// Expanded is the output of the PDF extraction tooling.
type Expanded struct {
	Foods []ExpandedFood `json:"foods"`
}

type ExpandedFood struct {
	Name           string `json:"name"`
	Group          string `json:"group"`
	Macronutrients struct {
		EnergyKcal    float64 `json:"energy_kcal"`
		EnergyKJ      float64 `json:"energy_kj"`
		Protein       float64 `json:"protein_g"`
		Lipids        float64 `json:"lipids_g"`
		Carbohydrates float64 `json:"carbohydrates_g"`
		DietaryFiber  float64 `json:"dietary_fiber_g"`
	} `json:"macronutrients"`
	Minerals struct {
		Calcium    float64 `json:"calcium_mg"`
		Magnesium  float64 `json:"magnesium_mg"`
		Phosphorus float64 `json:"phosphorus_mg"`
		Iron       float64 `json:"iron_mg"`
		Sodium     float64 `json:"sodium_mg"`
		Potassium  float64 `json:"potassium_mg"`
		Zinc       float64 `json:"zinc_mg"`
	} `json:"minerals"`
	Vitamins struct {
		VitaminARAE float64 `json:"vitamin_a_rae_mcg"`
		VitaminC    float64 `json:"vitamin_c_mg"`
		VitaminE    float64 `json:"vitamin_e_mg"`
		VitaminB12  float64 `json:"vitamin_b12_mcg"`
		Folate      float64 `json:"folate_mcg"`
	} `json:"vitamins"`
}

// Code formats the dataset code for an ID.
func Code(id int) string {
	return fmt.Sprintf("IBGE%04d", id)
}

// slug builds the ASCII identifier stored as the English name.
func slug(name string) string {
	folded := strings.ToLower(textnorm.ASCIIFold(name))
	folded = strings.Join(strings.Fields(folded), "_")
	var b strings.Builder
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ConvertExpanded turns extractor output into dataset foods numbered from FirstID.
func ConvertExpanded(exp Expanded) []Food {
	out := make([]Food, 0, len(exp.Foods))
	for i, e := range exp.Foods {
		id := FirstID + i
		m := e.Macronutrients
		kj := m.EnergyKJ
		if kj == 0 {
			kj = math.Round(m.EnergyKcal * 4.184)
		}
		out = append(out, Food{
			ID:                    id,
			Code:                  Code(id),
			Source:                Source,
			Name:                  e.Name,
			EnglishName:           slug(e.Name),
			Category:              e.Group,
			GroupID:               GroupID(e.Group),
			EnergyKcal:            m.EnergyKcal,
			EnergyKJ:              kj,
			Protein:               m.Protein,
			Lipids:                m.Lipids,
			Carbohydrate:          m.Carbohydrates,
			AvailableCarbohydrate: m.Carbohydrates,
			Fiber:                 m.DietaryFiber,
			Calcium:               e.Minerals.Calcium,
			Magnesium:             e.Minerals.Magnesium,
			Phosphorus:            e.Minerals.Phosphorus,
			Iron:                  e.Minerals.Iron,
			Sodium:                e.Minerals.Sodium,
			Potassium:             e.Minerals.Potassium,
			Zinc:                  e.Minerals.Zinc,
			VitaminC:              e.Vitamins.VitaminC,
			VitaminA:              e.Vitamins.VitaminARAE,
			VitaminE:              e.Vitamins.VitaminE,
			VitaminB12:            e.Vitamins.VitaminB12,
			Folate:                e.Vitamins.Folate,
			Tags: []string{
				strings.Join(strings.Fields(strings.ToLower(e.Group)), "_"),
				"ibge",
				"pof_2008_2009",
			},
		})
	}
	return out
}

func nonZeroNutrients(f Food) int {
	n := 0
	for _, v := range []float64{f.EnergyKcal, f.Protein, f.Lipids, f.Carbohydrate, f.Fiber,
		f.Calcium, f.Iron, f.Sodium, f.Potassium, f.VitaminC} {
		if v > 0 {
			n++
		}
	}
	return n
}

// Dedupe keeps one food per base name (the part before " - "), preferring
// the entry with more non-zero nutrients, then higher energy. First-seen
// order is preserved.
func Dedupe(foods []Food) []Food {
	index := make(map[string]int)
	var out []Food
	for _, f := range foods {
		key := strings.ToLower(strings.TrimSpace(strings.SplitN(f.Name, " - ", 2)[0]))
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, f)
			continue
		}
		cur, prev := nonZeroNutrients(f), nonZeroNutrients(out[i])
		if cur > prev || (cur == prev && f.EnergyKcal > out[i].EnergyKcal) {
			out[i] = f
		}
	}
	return out
}

// FilterValid drops entries with a too short name or no energy, protein
// or carbohydrate.
func FilterValid(foods []Food) []Food {
	var out []Food
	for _, f := range foods {
		if len([]rune(f.Name)) > 2 && (f.EnergyKcal > 0 || f.Protein > 0 || f.Carbohydrate > 0) {
			out = append(out, f)
		}
	}
	return out
}

// categoryKeywords are checked in order; the first group with a keyword in
// the food name wins.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"Cereais e Produtos de Cereais", []string{"arroz", "aveia", "trigo", "milho", "cevada", "centeio", "quinoa", "farinha", "fubá", "pão", "macarrão", "biscoito"}},
	{"Frutas e Produtos de Frutas", []string{"banana", "maçã", "laranja", "uva", "manga", "abacaxi", "melancia", "mamão", "morango", "pêra", "limão", "caju", "goiaba", "abacate"}},
	{"Hortaliças", []string{"alface", "tomate", "cenoura", "batata", "cebola", "alho", "brócolis", "couve", "espinafre", "repolho", "abobrinha", "chuchu", "beterraba", "pepino"}},
	{"Carnes e Produtos Cárneos", []string{"boi", "bovina", "carne", "frango", "peixe", "salmão", "sardinha", "atum", "camarão", "porco", "suína", "cordeiro"}},
	{"Leite e Produtos Lácteos", []string{"leite", "queijo", "iogurte", "manteiga", "nata", "creme de leite", "ricota", "muçarela"}},
	{"Leguminosas", []string{"feijão", "lentilha", "grão de bico", "ervilha", "soja"}},
	{"Óleos e Gorduras", []string{"óleo", "azeite", "margarina", "banha"}},
	{"Bebidas", []string{"suco", "refrigerante", "água", "chá", "café", "vinho", "cerveja", "cachaça"}},
	{"Açúcares e Produtos de Confeitaria", []string{"açúcar", "mel", "chocolate", "bala", "doce", "sobremesa", "pudim", "sorvete"}},
	{"Ovos e Derivados", []string{"ovo"}},
}

// FixCategories reassigns categories by keywords in the food name and
// returns how many changed.
func FixCategories(foods []Food) int {
	changed := 0
	for i := range foods {
		name := strings.ToLower(foods[i].Name)
	groups:
		for _, g := range categoryKeywords {
			for _, kw := range g.keywords {
				if strings.Contains(name, kw) {
					if foods[i].Category != g.category {
						foods[i].Category = g.category
						foods[i].GroupID = GroupID(g.category)
						changed++
					}
					break groups
				}
			}
		}
	}
	return changed
}

// Renumber gives foods consecutive IDs and codes starting at first.
func Renumber(foods []Food, first int) {
	for i := range foods {
		foods[i].ID = first + i
		foods[i].Code = Code(first + i)
	}
}

// Clean runs the full cleanup: dedupe, filter, recategorize, renumber.
func Clean(foods []Food) []Food {
	out := FilterValid(Dedupe(foods))
	FixCategories(out)
	Renumber(out, FirstID)
	return out
}

// Merge appends the foods of extra whose normalized name is not in base.
// Base entries are untouched; appended entries get fresh IDs and codes
// after the highest base ID. It returns the number added.
func Merge(base *Dataset, extra []Food) int {
	names := mapset.NewThreadUnsafeSet[string]()
	next := FirstID
	for _, f := range base.Foods {
		names.Add(textnorm.Normalize(f.Name))
		if f.ID >= next {
			next = f.ID + 1
		}
	}

	added := 0
	for _, f := range extra {
		key := textnorm.Normalize(f.Name)
		if key == "" || names.Contains(key) {
			continue
		}
		names.Add(key)
		f.ID = next
		f.Code = Code(next)
		next++
		base.Foods = append(base.Foods, f)
		added++
	}
	return added
}

// Coverage counts foods carrying mineral and vitamin data.
type Coverage struct {
	Total        int `json:"total"`
	WithMinerals int `json:"with_minerals"`
	WithVitamins int `json:"with_vitamins"`
	WithBoth     int `json:"with_both"`
}

func MeasureCoverage(foods []Food) Coverage {
	c := Coverage{Total: len(foods)}
	for _, f := range foods {
		minerals := f.Calcium > 0 || f.Iron > 0 || f.Sodium > 0 || f.Potassium > 0 || f.Magnesium > 0 || f.Zinc > 0
		vitamins := f.VitaminC > 0 || f.VitaminB12 > 0 || f.VitaminE > 0 || f.VitaminA > 0 || f.Folate > 0
		if minerals {
			c.WithMinerals++
		}
		if vitamins {
			c.WithVitamins++
		}
		if minerals && vitamins {
			c.WithBoth++
		}
	}
	return c
}
