// file: internals/features/finance/payment_orders/model/payment_order_model.go
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"gorm.io/datatypes"
)

/*
  payment_orders = money owed for one enrollment
  - created pending together with its enrollment request(s)
  - moved once to paid / cancelled / expired, never deleted
  - payment_order_history keeps every state change for the audit trail
*/

type OrderHistoryEntry struct {
	State OrderState `json:"state"`
	At    time.Time  `json:"at"`
	Actor *uuid.UUID `json:"actor,omitempty"`
	Note  string     `json:"note,omitempty"`
}

type PaymentOrderModel struct {
	PaymentOrderID     uuid.UUID `gorm:"column:payment_order_id;type:uuid;default:gen_random_uuid();primaryKey" json:"payment_order_id"`
	PaymentOrderNumber int64     `gorm:"column:payment_order_number;autoIncrement;uniqueIndex;not null" json:"payment_order_number"`

	PaymentOrderRequesterID    uuid.UUID `gorm:"column:payment_order_requester_id;type:uuid;not null;index" json:"payment_order_requester_id"`
	PaymentOrderConvocatoriaID uuid.UUID `gorm:"column:payment_order_convocatoria_id;type:uuid;not null;index" json:"payment_order_convocatoria_id"`

	PaymentOrderAmount   decimal.Decimal `gorm:"column:payment_order_amount;type:numeric(12,2);not null;check:payment_order_amount > 0" json:"payment_order_amount"`
	PaymentOrderCurrency string          `gorm:"column:payment_order_currency;type:varchar(3);not null" json:"payment_order_currency"`
	PaymentOrderState    OrderState      `gorm:"column:payment_order_state;type:varchar(16);not null;index:idx_payment_orders_state_expires,priority:1" json:"payment_order_state"`

	PaymentOrderPaidAt       *time.Time `gorm:"column:payment_order_paid_at;type:timestamptz" json:"payment_order_paid_at"`
	PaymentOrderReference    *string    `gorm:"column:payment_order_reference;type:varchar(50);uniqueIndex" json:"payment_order_reference"`
	PaymentOrderExpiresAt    time.Time  `gorm:"column:payment_order_expires_at;type:timestamptz;not null;index:idx_payment_orders_state_expires,priority:2" json:"payment_order_expires_at"`
	PaymentOrderObservations *string    `gorm:"column:payment_order_observations;type:text" json:"payment_order_observations"`

	PaymentOrderHistory datatypes.JSONSlice[OrderHistoryEntry] `gorm:"column:payment_order_history;type:jsonb" json:"payment_order_history"`

	PaymentOrderCreatedAt time.Time `gorm:"column:payment_order_created_at;type:timestamptz;not null;autoCreateTime" json:"payment_order_created_at"`
	PaymentOrderUpdatedAt time.Time `gorm:"column:payment_order_updated_at;type:timestamptz;not null;autoUpdateTime" json:"payment_order_updated_at"`

	Enrollments []EnrollmentRequestModel `gorm:"foreignKey:EnrollmentRequestOrderID;references:PaymentOrderID" json:"enrollments,omitempty"`
}

func (PaymentOrderModel) TableName() string {
	return "payment_orders"
}

// VoucherCode is the printed, scannable form of the order number.
func VoucherCode(number int64) string {
	return fmt.Sprintf("ORD-%06d", number)
}

func (o PaymentOrderModel) VoucherCode() string {
	return VoucherCode(o.PaymentOrderNumber)
}

// OrderTransition is one guarded state change: it applies only while the order
// is still in From.
type OrderTransition struct {
	OrderID      uuid.UUID
	From         OrderState
	To           OrderState
	At           time.Time
	PaidAt       *time.Time
	Reference    *string
	Observations *string
	History      datatypes.JSONSlice[OrderHistoryEntry]
}
