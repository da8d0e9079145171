package convocatorias

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/govalues/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	areaModel "olimpiada_backend/internals/features/olympiad/areas/model"
	"olimpiada_backend/internals/features/olympiad/convocatorias/model"
)

//go:embed data_convocatorias.json
var dataConvocatorias []byte

type ConvocatoriaSeed struct {
	Name        string   `json:"convocatoria_name"`
	Description *string  `json:"convocatoria_description"`
	StartDate   string   `json:"convocatoria_start_date"`
	EndDate     string   `json:"convocatoria_end_date"`
	CostPerArea string   `json:"convocatoria_cost_per_area"`
	MaxAreas    int      `json:"convocatoria_max_areas"`
	Areas       []string `json:"areas"`
}

// SeedConvocatorias needs the areas to be seeded first.
func SeedConvocatorias(db *gorm.DB, log *zap.Logger) error {
	return SeedConvocatoriasFromJSON(db, log, dataConvocatorias)
}

func SeedConvocatoriasFromJSON(db *gorm.DB, log *zap.Logger, data []byte) error {
	var seeds []ConvocatoriaSeed
	if err := sonic.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("decode convocatoria seeds: %w", err)
	}

	for _, s := range seeds {
		var existing model.ConvocatoriaModel
		err := db.Where("convocatoria_name = ?", s.Name).First(&existing).Error
		if err == nil {
			log.Info("convocatoria already exists, skipped", zap.String("name", s.Name))
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup convocatoria %s: %w", s.Name, err)
		}

		row, err := s.toModel()
		if err != nil {
			return err
		}
		if err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			var areas []areaModel.AreaModel
			if err := tx.Where("area_name IN ?", s.Areas).Find(&areas).Error; err != nil {
				return err
			}
			if len(areas) != len(s.Areas) {
				return fmt.Errorf("convocatoria %s lists %d areas, found %d", s.Name, len(s.Areas), len(areas))
			}
			links := make([]model.ConvocatoriaAreaModel, 0, len(areas))
			for _, a := range areas {
				links = append(links, model.ConvocatoriaAreaModel{
					ConvocatoriaAreaConvocatoriaID: row.ConvocatoriaID,
					ConvocatoriaAreaAreaID:         a.AreaID,
				})
			}
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
		}); err != nil {
			return fmt.Errorf("seed convocatoria %s: %w", s.Name, err)
		}
		log.Info("convocatoria seeded", zap.String("name", s.Name), zap.Int("areas", len(s.Areas)))
	}
	return nil
}

func (s ConvocatoriaSeed) toModel() (model.ConvocatoriaModel, error) {
	start, err := time.Parse("2006-01-02", s.StartDate)
	if err != nil {
		return model.ConvocatoriaModel{}, fmt.Errorf("convocatoria %s: start date: %w", s.Name, err)
	}
	end, err := time.Parse("2006-01-02", s.EndDate)
	if err != nil {
		return model.ConvocatoriaModel{}, fmt.Errorf("convocatoria %s: end date: %w", s.Name, err)
	}
	if end.Before(start) {
		return model.ConvocatoriaModel{}, fmt.Errorf("convocatoria %s ends before it starts", s.Name)
	}
	cost, err := decimal.Parse(s.CostPerArea)
	if err != nil {
		return model.ConvocatoriaModel{}, fmt.Errorf("convocatoria %s: cost: %w", s.Name, err)
	}
	if s.MaxAreas < 1 {
		s.MaxAreas = 1
	}
	return model.ConvocatoriaModel{
		ConvocatoriaName:        s.Name,
		ConvocatoriaDescription: s.Description,
		ConvocatoriaStartDate:   start,
		ConvocatoriaEndDate:     end,
		ConvocatoriaCostPerArea: cost,
		ConvocatoriaMaxAreas:    s.MaxAreas,
		ConvocatoriaIsActive:    true,
	}, nil
}
