package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
)

type EnrollmentRequestModel struct {
	EnrollmentRequestID                   uuid.UUID       `gorm:"column:enrollment_request_id;type:uuid;default:gen_random_uuid();primaryKey" json:"enrollment_request_id"`
	EnrollmentRequestStudentID            uuid.UUID       `gorm:"column:enrollment_request_student_id;type:uuid;not null;index" json:"enrollment_request_student_id"`
	EnrollmentRequestConvocatoriaID       uuid.UUID       `gorm:"column:enrollment_request_convocatoria_id;type:uuid;not null;index" json:"enrollment_request_convocatoria_id"`
	EnrollmentRequestOrderID              uuid.UUID       `gorm:"column:enrollment_request_order_id;type:uuid;not null;index" json:"enrollment_request_order_id"`
	EnrollmentRequestResponsibleAccountID uuid.UUID       `gorm:"column:enrollment_request_responsible_account_id;type:uuid;not null" json:"enrollment_request_responsible_account_id"`
	EnrollmentRequestState                EnrollmentState `gorm:"column:enrollment_request_state;type:varchar(16);not null" json:"enrollment_request_state"`

	EnrollmentRequestRequestedAt time.Time `gorm:"column:enrollment_request_requested_at;type:timestamptz;not null" json:"enrollment_request_requested_at"`
	EnrollmentRequestUpdatedAt   time.Time `gorm:"column:enrollment_request_updated_at;type:timestamptz;not null;autoUpdateTime" json:"enrollment_request_updated_at"`

	Selections []AreaSelectionModel `gorm:"foreignKey:AreaSelectionEnrollmentRequestID;references:EnrollmentRequestID" json:"selections,omitempty"`
}

func (EnrollmentRequestModel) TableName() string {
	return "enrollment_requests"
}

// AreaSelectionModel freezes the area's price when it was picked.
type AreaSelectionModel struct {
	AreaSelectionEnrollmentRequestID uuid.UUID       `gorm:"column:area_selection_enrollment_request_id;type:uuid;primaryKey" json:"enrollment_request_id"`
	AreaSelectionAreaID              uuid.UUID       `gorm:"column:area_selection_area_id;type:uuid;primaryKey" json:"area_id"`
	AreaSelectionAreaName            string          `gorm:"column:area_selection_area_name;type:varchar(120);not null" json:"area_name"`
	AreaSelectionCostSnapshot        decimal.Decimal `gorm:"column:area_selection_cost_snapshot;type:numeric(12,2);not null" json:"cost_snapshot"`
	AreaSelectionCreatedAt           time.Time       `gorm:"column:area_selection_created_at;type:timestamptz;not null;autoCreateTime" json:"created_at"`
}

func (AreaSelectionModel) TableName() string {
	return "area_selections"
}
