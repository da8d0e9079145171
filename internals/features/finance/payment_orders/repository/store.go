package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"olimpiada_backend/internals/features/finance/payment_orders/model"
	areaModel "olimpiada_backend/internals/features/olympiad/areas/model"
	convModel "olimpiada_backend/internals/features/olympiad/convocatorias/model"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateReference = errors.New("payment reference already used")
)

type OrderFilter struct {
	State  *model.OrderState
	From   *time.Time // inclusive
	To     *time.Time // exclusive
	Offset int
	Limit  int
}

// StatsFilter bounds a report by order creation time.
type StatsFilter struct {
	From     *time.Time // inclusive
	To       *time.Time // exclusive
	TopAreas int
}

type StateTotal struct {
	State  model.OrderState
	Orders int64
	Amount decimal.Decimal
}

// AreaDemand counts the area selections of live (pending or paid) orders.
type AreaDemand struct {
	AreaID     uuid.UUID
	AreaName   string
	Selections int64
}

type OrderStats struct {
	States   []StateTotal
	TopAreas []AreaDemand
}

// Store is the persistence the order lifecycle needs. WithTx runs fn against a
// transactional Store; fn's error rolls everything back.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error

	AccountExists(ctx context.Context, id uuid.UUID) (bool, error)
	StudentExists(ctx context.Context, id uuid.UUID) (bool, error)

	FindConvocatoria(ctx context.Context, id uuid.UUID) (*convModel.ConvocatoriaModel, error)
	FindOpenConvocatorias(ctx context.Context, now time.Time) ([]convModel.ConvocatoriaModel, error)
	// FindConvocatoriaAreas returns the active areas among ids that belong to the call.
	FindConvocatoriaAreas(ctx context.Context, convocatoriaID uuid.UUID, ids []uuid.UUID) ([]areaModel.AreaModel, error)

	CreateOrder(ctx context.Context, o *model.PaymentOrderModel) error
	CreateEnrollment(ctx context.Context, e *model.EnrollmentRequestModel) error

	GetOrder(ctx context.Context, id uuid.UUID) (*model.PaymentOrderModel, error)
	// LockOrder reads the order with a row lock held until the transaction ends.
	LockOrder(ctx context.Context, id uuid.UUID) (*model.PaymentOrderModel, error)
	FindOrderByNumberOrReference(ctx context.Context, number int64, reference string) (*model.PaymentOrderModel, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]model.PaymentOrderModel, int64, error)
	ReferenceInUse(ctx context.Context, reference string, exceptOrder uuid.UUID) (bool, error)
	CountEnrollments(ctx context.Context, orderID uuid.UUID) (int64, error)
	OrderStats(ctx context.Context, f StatsFilter) (*OrderStats, error)

	// TransitionOrder applies t only while the order is still in t.From and
	// reports whether it did.
	TransitionOrder(ctx context.Context, t model.OrderTransition) (bool, error)
	// ListOverdueForUpdate locks pending orders past their expiry, skipping rows
	// another transaction already holds.
	ListOverdueForUpdate(ctx context.Context, now time.Time) ([]model.PaymentOrderModel, error)

	GetEnrollment(ctx context.Context, id uuid.UUID) (*model.EnrollmentRequestModel, error)
	SetEnrollmentStates(ctx context.Context, orderIDs []uuid.UUID, state model.EnrollmentState, at time.Time) (int64, error)
}
