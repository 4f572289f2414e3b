// import.go - Loads a dataset into the foods table

package ibge

import (
	"context"
	"fmt"

	"go-nutri-backend/logger"
	"go-nutri-backend/models"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const importBatch = 200

// ImportResult reports what Import wrote.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Import upserts foods by code in one transaction. Entries without a code
// or name are skipped, and so are earlier entries repeating a code: the
// last one wins.
func Import(ctx context.Context, db *gorm.DB, foods []Food) (ImportResult, error) {
	var res ImportResult
	rows := make([]models.Food, 0, len(foods))
	codes := make([]string, 0, len(foods))
	at := make(map[string]int, len(foods))
	for _, f := range foods {
		if f.Code == "" || f.Name == "" {
			res.Skipped++
			continue
		}
		if i, dup := at[f.Code]; dup {
			rows[i] = ToModel(f)
			res.Skipped++
			continue
		}
		at[f.Code] = len(rows)
		rows = append(rows, ToModel(f))
		codes = append(codes, f.Code)
	}
	if len(rows) == 0 {
		return res, nil
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		for start := 0; start < len(codes); start += importBatch {
			end := min(start+importBatch, len(codes))
			var chunk []string
			if err := tx.Model(&models.Food{}).Where("code IN ?", codes[start:end]).Pluck("code", &chunk).Error; err != nil {
				return err
			}
			existing = append(existing, chunk...)
		}
		known := mapset.NewThreadUnsafeSet(existing...)

		upsert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			UpdateAll: true,
		})
		if err := upsert.CreateInBatches(&rows, importBatch).Error; err != nil {
			return fmt.Errorf("upsert foods: %w", err)
		}

		for _, c := range codes {
			if known.Contains(c) {
				res.Updated++
			} else {
				res.Created++
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	logger.L().Infow("ibge import finished", "created", res.Created, "updated", res.Updated, "skipped", res.Skipped)
	return res, nil
}
