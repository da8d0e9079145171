package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
)

// AreaModel is a subject a student can compete in. AreaCost overrides the
// call's per-area price when set.
type AreaModel struct {
	AreaID          uuid.UUID        `gorm:"column:area_id;type:uuid;default:gen_random_uuid();primaryKey" json:"area_id"`
	AreaName        string           `gorm:"column:area_name;type:varchar(120);not null;uniqueIndex" json:"area_name"`
	AreaDescription *string          `gorm:"column:area_description;type:text" json:"area_description"`
	AreaIsActive    bool             `gorm:"column:area_is_active;not null;default:true" json:"area_is_active"`
	AreaCost        *decimal.Decimal `gorm:"column:area_cost;type:numeric(12,2)" json:"area_cost"`

	AreaCreatedAt time.Time `gorm:"column:area_created_at;not null;autoCreateTime" json:"area_created_at"`
	AreaUpdatedAt time.Time `gorm:"column:area_updated_at;not null;autoUpdateTime" json:"area_updated_at"`
}

func (AreaModel) TableName() string {
	return "areas"
}
