package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"olimpiada_backend/internals/features/finance/payment_orders/model"
	areaModel "olimpiada_backend/internals/features/olympiad/areas/model"
	convModel "olimpiada_backend/internals/features/olympiad/convocatorias/model"
	accountModel "olimpiada_backend/internals/features/users/accounts/model"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) exists(ctx context.Context, m any, column string, id uuid.UUID) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(m).Where(column+" = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *GormStore) AccountExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.exists(ctx, &accountModel.AccountModel{}, "account_id", id)
}

func (s *GormStore) StudentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.exists(ctx, &accountModel.StudentModel{}, "student_id", id)
}

func (s *GormStore) FindConvocatoria(ctx context.Context, id uuid.UUID) (*convModel.ConvocatoriaModel, error) {
	var c convModel.ConvocatoriaModel
	if err := s.db.WithContext(ctx).First(&c, "convocatoria_id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *GormStore) FindOpenConvocatorias(ctx context.Context, now time.Time) ([]convModel.ConvocatoriaModel, error) {
	var out []convModel.ConvocatoriaModel
	err := s.db.WithContext(ctx).
		Scopes(convModel.OpenAt(now)).
		Order("convocatoria_start_date ASC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) FindConvocatoriaAreas(ctx context.Context, convocatoriaID uuid.UUID, ids []uuid.UUID) ([]areaModel.AreaModel, error) {
	var out []areaModel.AreaModel
	err := s.db.WithContext(ctx).
		Joins("JOIN convocatoria_areas ca ON ca.convocatoria_area_area_id = areas.area_id").
		Where("ca.convocatoria_area_convocatoria_id = ? AND areas.area_id IN ? AND areas.area_is_active = ?", convocatoriaID, ids, true).
		Find(&out).Error
	return out, err
}

func (s *GormStore) CreateOrder(ctx context.Context, o *model.PaymentOrderModel) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(o).Error
}

func (s *GormStore) CreateEnrollment(ctx context.Context, e *model.EnrollmentRequestModel) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *GormStore) GetOrder(ctx context.Context, id uuid.UUID) (*model.PaymentOrderModel, error) {
	var o model.PaymentOrderModel
	err := s.db.WithContext(ctx).
		Preload("Enrollments.Selections").
		First(&o, "payment_order_id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *GormStore) LockOrder(ctx context.Context, id uuid.UUID) (*model.PaymentOrderModel, error) {
	var o model.PaymentOrderModel
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&o, "payment_order_id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *GormStore) FindOrderByNumberOrReference(ctx context.Context, number int64, reference string) (*model.PaymentOrderModel, error) {
	q := s.db.WithContext(ctx).Preload("Enrollments.Selections")
	switch {
	case number > 0 && reference != "":
		q = q.Where("payment_order_number = ? OR payment_order_reference = ?", number, reference)
	case number > 0:
		q = q.Where("payment_order_number = ?", number)
	case reference != "":
		q = q.Where("payment_order_reference = ?", reference)
	default:
		return nil, ErrNotFound
	}

	var o model.PaymentOrderModel
	if err := q.Order("payment_order_number ASC").First(&o).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *GormStore) ListOrders(ctx context.Context, f OrderFilter) ([]model.PaymentOrderModel, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.PaymentOrderModel{})
	if f.State != nil {
		q = q.Where("payment_order_state = ?", *f.State)
	}
	q = createdBetween(q, "payment_order_created_at", f.From, f.To)
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []model.PaymentOrderModel
	err := q.Preload("Enrollments").
		Order("payment_order_created_at DESC").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&out).Error
	return out, total, err
}

func createdBetween(q *gorm.DB, column string, from, to *time.Time) *gorm.DB {
	if from != nil {
		q = q.Where(column+" >= ?", *from)
	}
	if to != nil {
		q = q.Where(column+" < ?", *to)
	}
	return q
}

func (s *GormStore) OrderStats(ctx context.Context, f StatsFilter) (*OrderStats, error) {
	var out OrderStats

	q := s.db.WithContext(ctx).Model(&model.PaymentOrderModel{}).
		Select("payment_order_state AS state, COUNT(*) AS orders, COALESCE(SUM(payment_order_amount), 0) AS amount")
	q = createdBetween(q, "payment_order_created_at", f.From, f.To)
	if err := q.Group("payment_order_state").Order("payment_order_state").Scan(&out.States).Error; err != nil {
		return nil, err
	}

	if f.TopAreas <= 0 {
		return &out, nil
	}
	a := s.db.WithContext(ctx).Table("area_selections AS s").
		Select("s.area_selection_area_id AS area_id, MAX(s.area_selection_area_name) AS area_name, COUNT(*) AS selections").
		Joins("JOIN enrollment_requests e ON e.enrollment_request_id = s.area_selection_enrollment_request_id").
		Joins("JOIN payment_orders o ON o.payment_order_id = e.enrollment_request_order_id").
		Where("o.payment_order_state IN ?", []model.OrderState{model.OrderStatePending, model.OrderStatePaid})
	a = createdBetween(a, "o.payment_order_created_at", f.From, f.To)
	err := a.Group("s.area_selection_area_id").
		Order("selections DESC, area_name ASC").
		Limit(f.TopAreas).
		Scan(&out.TopAreas).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GormStore) ReferenceInUse(ctx context.Context, reference string, exceptOrder uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.PaymentOrderModel{}).
		Where("payment_order_reference = ? AND payment_order_id <> ?", reference, exceptOrder).
		Count(&n).Error
	return n > 0, err
}

func (s *GormStore) CountEnrollments(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.EnrollmentRequestModel{}).
		Where("enrollment_request_order_id = ?", orderID).
		Count(&n).Error
	return n, err
}

func (s *GormStore) TransitionOrder(ctx context.Context, t model.OrderTransition) (bool, error) {
	updates := map[string]any{
		"payment_order_state":      t.To,
		"payment_order_updated_at": t.At,
		"payment_order_history":    t.History,
	}
	if t.PaidAt != nil {
		updates["payment_order_paid_at"] = *t.PaidAt
	}
	if t.Reference != nil {
		updates["payment_order_reference"] = *t.Reference
	}
	if t.Observations != nil {
		updates["payment_order_observations"] = *t.Observations
	}

	res := s.db.WithContext(ctx).Model(&model.PaymentOrderModel{}).
		Where("payment_order_id = ? AND payment_order_state = ?", t.OrderID, t.From).
		Updates(updates)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return false, ErrDuplicateReference
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) ListOverdueForUpdate(ctx context.Context, now time.Time) ([]model.PaymentOrderModel, error) {
	var out []model.PaymentOrderModel
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("payment_order_state = ? AND payment_order_expires_at < ?", model.OrderStatePending, now).
		Order("payment_order_expires_at ASC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) GetEnrollment(ctx context.Context, id uuid.UUID) (*model.EnrollmentRequestModel, error) {
	var e model.EnrollmentRequestModel
	if err := s.db.WithContext(ctx).First(&e, "enrollment_request_id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *GormStore) SetEnrollmentStates(ctx context.Context, orderIDs []uuid.UUID, state model.EnrollmentState, at time.Time) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&model.EnrollmentRequestModel{}).
		Where("enrollment_request_order_id IN ?", orderIDs).
		Updates(map[string]any{
			"enrollment_request_state":      state,
			"enrollment_request_updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation covers both the raw pg error and gorm's translated one.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
