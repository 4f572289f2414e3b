// foods.go - Food composition catalog backed by the database
//
// Search runs accent-insensitive matching in Go (SQL LIKE cannot fold
// accents portably across sqlite and postgres) and keeps recent result
// pages in an LRU cache. Pages expire after the cache TTL, and Invalidate
// drops them all at once when an import announces new foods.

package foods

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go-nutri-backend/models"
	"go-nutri-backend/nutrition"
	"go-nutri-backend/textnorm"

	lru "github.com/hashicorp/golang-lru"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("food not found")

// AllCategories disables the category filter.
const AllCategories = "all"

// Sort orders accepted by Search.
const (
	SortRelevance = "relevance"
	SortName      = "name"
	SortEnergy    = "energy_kcal"
	SortProtein   = "protein_g"
)

const defaultPerPage = 20

// SearchParams selects one page of foods.
type SearchParams struct {
	Query    string `form:"q"`
	Category string `form:"category"`
	SortBy   string `form:"sort"`
	Page     int    `form:"page"`
	PerPage  int    `form:"per_page"`
}

// SearchResult is one page plus totals.
type SearchResult struct {
	Foods      []models.Food `json:"foods"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	HasMore    bool          `json:"has_more"`
}

type Service struct {
	db    *gorm.DB
	cache *lru.Cache
	ttl   time.Duration // 0 keeps pages until evicted or invalidated
	now   func() time.Time
}

type cachedPage struct {
	res      SearchResult
	storedAt time.Time
}

// NewService wraps db with a search cache holding cacheSize pages for at
// most ttl each.
func NewService(db *gorm.DB, cacheSize int, ttl time.Duration) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("food cache: %w", err)
	}
	return &Service{db: db, cache: cache, ttl: ttl, now: time.Now}, nil
}

func (p *SearchParams) normalize() {
	p.Query = strings.TrimSpace(p.Query)
	if p.Category == "" {
		p.Category = AllCategories
	}
	if p.SortBy == "" {
		if p.Query != "" {
			p.SortBy = SortRelevance
		} else {
			p.SortBy = SortName
		}
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 || p.PerPage > 100 {
		p.PerPage = defaultPerPage
	}
}

func (p SearchParams) cacheKey() string {
	return fmt.Sprintf("%s|%s|%s|%d|%d", textnorm.Normalize(p.Query), p.Category, p.SortBy, p.Page, p.PerPage)
}

// Search returns the requested page of foods whose name contains the query.
func (s *Service) Search(ctx context.Context, p SearchParams) (SearchResult, error) {
	p.normalize()
	if p.Query != "" && !textnorm.Searchable(p.Query) { // e.g. "..." would otherwise share the empty query's pages
		return SearchResult{Page: p.Page, Foods: []models.Food{}}, nil
	}
	key := p.cacheKey()
	if v, ok := s.cache.Get(key); ok {
		page := v.(cachedPage)
		if s.ttl <= 0 || s.now().Sub(page.storedAt) < s.ttl {
			return page.res, nil
		}
		s.cache.Remove(key)
	}

	q := s.db.WithContext(ctx).Model(&models.Food{})
	if p.Category != AllCategories {
		q = q.Where("category = ?", p.Category)
	}
	var all []models.Food
	if err := q.Find(&all).Error; err != nil {
		return SearchResult{}, err
	}

	matched := all[:0]
	for _, f := range all {
		if p.Query == "" || textnorm.Contains(f.Name, p.Query) {
			matched = append(matched, f)
		}
	}

	switch p.SortBy {
	case SortEnergy:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].EnergyKcal > matched[j].EnergyKcal })
	case SortProtein:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Protein > matched[j].Protein })
	case SortRelevance:
		sortByName(matched)
		matched = textnorm.SortByRelevance(matched, p.Query, func(f models.Food) string { return f.Name })
	default:
		sortByName(matched)
	}

	res := SearchResult{
		TotalCount: len(matched),
		Page:       p.Page,
		TotalPages: int(math.Ceil(float64(len(matched)) / float64(p.PerPage))),
		Foods:      []models.Food{},
	}
	start := (p.Page - 1) * p.PerPage
	end := start + p.PerPage
	if start < len(matched) {
		if end > len(matched) {
			end = len(matched)
		}
		res.Foods = append(res.Foods, matched[start:end]...)
	}
	res.HasMore = end < len(matched)

	s.cache.Add(key, cachedPage{res: res, storedAt: s.now()})
	return res, nil
}

func sortByName(fs []models.Food) {
	sort.SliceStable(fs, func(i, j int) bool {
		return textnorm.Normalize(fs[i].Name) < textnorm.Normalize(fs[j].Name)
	})
}

// Get loads one food.
func (s *Service) Get(ctx context.Context, id uint) (models.Food, error) {
	var f models.Food
	err := s.db.WithContext(ctx).First(&f, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return f, ErrNotFound
	}
	return f, err
}

// GetMany loads foods by ID; missing IDs are an error.
func (s *Service) GetMany(ctx context.Context, ids []uint) (map[uint]models.Food, error) {
	var list []models.Food
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]models.Food, len(list))
	for _, f := range list {
		out[f.ID] = f
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
	}
	return out, nil
}

// Categories lists the distinct categories, sorted.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	err := s.db.WithContext(ctx).Model(&models.Food{}).
		Distinct("category").Order("category").Pluck("category", &cats).Error
	return cats, err
}

// Substitutions suggests same-category foods richer in nutrient.
func (s *Service) Substitutions(ctx context.Context, id uint, nutrient string) ([]models.Food, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var peers []models.Food
	if err := s.db.WithContext(ctx).Where("category = ?", current.Category).Find(&peers).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Food, len(peers))
	catalog := make([]nutrition.Food, len(peers))
	for i, f := range peers {
		byID[f.ID] = f
		catalog[i] = ToNutrition(f)
	}
	picked := nutrition.SuggestSubstitutions(ToNutrition(current), nutrient, catalog)
	out := make([]models.Food, len(picked))
	for i, f := range picked {
		out[i] = byID[f.ID]
	}
	return out, nil
}

// Invalidate drops every cached search page.
func (s *Service) Invalidate() {
	s.cache.Purge()
}

// UpdatedTopic is the MQTT topic importers publish to after writing foods.
func UpdatedTopic(prefix string) string {
	return prefix + "/foods/updated"
}

// ToNutrition maps a stored food to the calculation type.
func ToNutrition(f models.Food) nutrition.Food {
	return nutrition.Food{
		ID:         f.ID,
		Name:       f.Name,
		Category:   f.Category,
		EnergyKcal: f.EnergyKcal,
		Protein:    f.Protein,
		Lipids:     f.Lipids,
		Carbs:      f.Carbohydrate,
		Fiber:      f.Fiber,
		Sodium:     f.Sodium,
		Calcium:    f.Calcium,
		Iron:       f.Iron,
		Magnesium:  f.Magnesium,
		Phosphorus: f.Phosphorus,
		Potassium:  f.Potassium,
		Zinc:       f.Zinc,
		VitaminC:   f.VitaminC,
		VitaminA:   f.VitaminA,
		VitaminE:   f.VitaminE,
		VitaminB12: f.VitaminB12,
		Folate:     f.Folate,
	}
}
