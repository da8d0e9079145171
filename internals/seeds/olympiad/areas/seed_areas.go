package areas

import (
	_ "embed"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/govalues/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"olimpiada_backend/internals/features/olympiad/areas/model"
)

//go:embed data_areas.json
var dataAreas []byte

type AreaSeed struct {
	Name        string  `json:"area_name"`
	Description *string `json:"area_description"`
	Cost        *string `json:"area_cost"`
}

// SeedAreas inserts the catalogue areas, leaving existing names untouched.
func SeedAreas(db *gorm.DB, log *zap.Logger) error {
	return SeedAreasFromJSON(db, log, dataAreas)
}

func SeedAreasFromJSON(db *gorm.DB, log *zap.Logger, data []byte) error {
	var seeds []AreaSeed
	if err := sonic.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("decode area seeds: %w", err)
	}

	rows := make([]model.AreaModel, 0, len(seeds))
	for _, s := range seeds {
		row := model.AreaModel{AreaName: s.Name, AreaDescription: s.Description, AreaIsActive: true}
		if s.Cost != nil {
			cost, err := decimal.Parse(*s.Cost)
			if err != nil {
				return fmt.Errorf("area %s: bad cost %q: %w", s.Name, *s.Cost, err)
			}
			row.AreaCost = &cost
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		log.Info("no area seeds to insert")
		return nil
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "area_name"}},
		DoNothing: true,
	}).Create(&rows)
	if res.Error != nil {
		return fmt.Errorf("insert areas: %w", res.Error)
	}
	log.Info("areas seeded", zap.Int64("inserted", res.RowsAffected), zap.Int("total", len(rows)))
	return nil
}
