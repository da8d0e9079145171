package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"gorm.io/gorm"

	areaModel "olimpiada_backend/internals/features/olympiad/areas/model"
)

// ConvocatoriaModel is a competition call: a registration window with its own
// area list, price per area and per-student area limit.
type ConvocatoriaModel struct {
	ConvocatoriaID          uuid.UUID       `gorm:"column:convocatoria_id;type:uuid;default:gen_random_uuid();primaryKey" json:"convocatoria_id"`
	ConvocatoriaName        string          `gorm:"column:convocatoria_name;type:varchar(160);not null" json:"convocatoria_name"`
	ConvocatoriaDescription *string         `gorm:"column:convocatoria_description;type:text" json:"convocatoria_description"`
	ConvocatoriaStartDate   time.Time       `gorm:"column:convocatoria_start_date;type:date;not null" json:"convocatoria_start_date"`
	ConvocatoriaEndDate     time.Time       `gorm:"column:convocatoria_end_date;type:date;not null" json:"convocatoria_end_date"`
	ConvocatoriaCostPerArea decimal.Decimal `gorm:"column:convocatoria_cost_per_area;type:numeric(12,2);not null" json:"convocatoria_cost_per_area"`
	ConvocatoriaMaxAreas    int             `gorm:"column:convocatoria_max_areas;not null;default:2;check:convocatoria_max_areas >= 1" json:"convocatoria_max_areas"`
	ConvocatoriaIsActive    bool            `gorm:"column:convocatoria_is_active;not null;default:true;index" json:"convocatoria_is_active"`

	ConvocatoriaCreatedAt time.Time `gorm:"column:convocatoria_created_at;not null;autoCreateTime" json:"convocatoria_created_at"`
	ConvocatoriaUpdatedAt time.Time `gorm:"column:convocatoria_updated_at;not null;autoUpdateTime" json:"convocatoria_updated_at"`

	Areas []areaModel.AreaModel `gorm:"-" json:"areas,omitempty"`
}

func (ConvocatoriaModel) TableName() string {
	return "convocatorias"
}

// IsOpen reports whether registrations are accepted on now's calendar day.
// Both ends of the window are inclusive.
func (c ConvocatoriaModel) IsOpen(now time.Time) bool {
	if !c.ConvocatoriaIsActive {
		return false
	}
	today := dateOf(now)
	return !today.Before(dateOf(c.ConvocatoriaStartDate)) && !today.After(dateOf(c.ConvocatoriaEndDate))
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// OpenAt is the query form of IsOpen.
func OpenAt(now time.Time) func(*gorm.DB) *gorm.DB {
	today := dateOf(now).Format("2006-01-02")
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("convocatoria_is_active = ? AND convocatoria_start_date <= ? AND convocatoria_end_date >= ?", true, today, today)
	}
}

type ConvocatoriaAreaModel struct {
	ConvocatoriaAreaConvocatoriaID uuid.UUID `gorm:"column:convocatoria_area_convocatoria_id;type:uuid;primaryKey" json:"convocatoria_id"`
	ConvocatoriaAreaAreaID         uuid.UUID `gorm:"column:convocatoria_area_area_id;type:uuid;primaryKey;index" json:"area_id"`
}

func (ConvocatoriaAreaModel) TableName() string {
	return "convocatoria_areas"
}
