package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"olimpiada_backend/internals/features/finance/payment_orders/model"
	"olimpiada_backend/internals/features/finance/payment_orders/repository"
	areaModel "olimpiada_backend/internals/features/olympiad/areas/model"
	convModel "olimpiada_backend/internals/features/olympiad/convocatorias/model"
)

// memState is the whole fake database. Transactions work on a copy that
// replaces the original only on commit.
type memState struct {
	accounts    map[uuid.UUID]bool
	students    map[uuid.UUID]bool
	convs       map[uuid.UUID]convModel.ConvocatoriaModel
	convAreas   map[uuid.UUID][]uuid.UUID
	areas       map[uuid.UUID]areaModel.AreaModel
	orders      map[uuid.UUID]model.PaymentOrderModel
	enrollments map[uuid.UUID]model.EnrollmentRequestModel
	nextNumber  int64
}

func newMemState() *memState {
	return &memState{
		accounts:    map[uuid.UUID]bool{},
		students:    map[uuid.UUID]bool{},
		convs:       map[uuid.UUID]convModel.ConvocatoriaModel{},
		convAreas:   map[uuid.UUID][]uuid.UUID{},
		areas:       map[uuid.UUID]areaModel.AreaModel{},
		orders:      map[uuid.UUID]model.PaymentOrderModel{},
		enrollments: map[uuid.UUID]model.EnrollmentRequestModel{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, v := range s.convs {
		c.convs[k] = v
	}
	for k, v := range s.convAreas {
		c.convAreas[k] = append([]uuid.UUID(nil), v...)
	}
	for k, v := range s.areas {
		c.areas[k] = v
	}
	for k, v := range s.orders {
		v.PaymentOrderHistory = append([]model.OrderHistoryEntry(nil), v.PaymentOrderHistory...)
		c.orders[k] = v
	}
	for k, v := range s.enrollments {
		v.Selections = append([]model.AreaSelectionModel(nil), v.Selections...)
		c.enrollments[k] = v
	}
	c.nextNumber = s.nextNumber
	return c
}

type fakeStore struct {
	mu   *sync.Mutex
	root **memState
	st   *memState
	inTx bool

	failCommit error
	failOn     map[string]error
}

func newFakeStore() *fakeStore {
	st := newMemState()
	return &fakeStore{mu: &sync.Mutex{}, root: &st, st: st, failOn: map[string]error{}}
}

var _ repository.Store = (*fakeStore)(nil)

// state returns the committed state for reads outside a transaction.
func (f *fakeStore) state() *memState {
	if f.inTx {
		return f.st
	}
	return *f.root
}

func (f *fakeStore) lock() func() {
	if f.inTx {
		return func() {}
	}
	f.mu.Lock()
	return f.mu.Unlock
}

func (f *fakeStore) fail(op string) error {
	return f.failOn[op]
}

// WithTx serializes transactions, which is how the row locks behave for the
// single-order cases exercised here.
func (f *fakeStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	work := (*f.root).clone()
	tx := &fakeStore{mu: f.mu, root: f.root, st: work, inTx: true, failOn: f.failOn}
	if err := fn(tx); err != nil {
		return err
	}
	if f.failCommit != nil {
		return f.failCommit
	}
	*f.root = work
	return nil
}

func (f *fakeStore) AccountExists(_ context.Context, id uuid.UUID) (bool, error) {
	defer f.lock()()
	return f.state().accounts[id], f.fail("AccountExists")
}

func (f *fakeStore) StudentExists(_ context.Context, id uuid.UUID) (bool, error) {
	defer f.lock()()
	return f.state().students[id], f.fail("StudentExists")
}

func (f *fakeStore) FindConvocatoria(_ context.Context, id uuid.UUID) (*convModel.ConvocatoriaModel, error) {
	defer f.lock()()
	c, ok := f.state().convs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (f *fakeStore) FindOpenConvocatorias(_ context.Context, now time.Time) ([]convModel.ConvocatoriaModel, error) {
	defer f.lock()()
	var out []convModel.ConvocatoriaModel
	for _, c := range f.state().convs {
		if c.IsOpen(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) FindConvocatoriaAreas(_ context.Context, convocatoriaID uuid.UUID, ids []uuid.UUID) ([]areaModel.AreaModel, error) {
	defer f.lock()()
	st := f.state()
	inCall := map[uuid.UUID]bool{}
	for _, id := range st.convAreas[convocatoriaID] {
		inCall[id] = true
	}
	var out []areaModel.AreaModel
	for _, id := range ids {
		a, ok := st.areas[id]
		if ok && inCall[id] && a.AreaIsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, o *model.PaymentOrderModel) error {
	if err := f.fail("CreateOrder"); err != nil {
		return err
	}
	defer f.lock()()
	st := f.state()
	st.nextNumber++
	o.PaymentOrderNumber = st.nextNumber
	cp := *o
	cp.Enrollments = nil
	st.orders[o.PaymentOrderID] = cp
	return nil
}

func (f *fakeStore) CreateEnrollment(_ context.Context, e *model.EnrollmentRequestModel) error {
	if err := f.fail("CreateEnrollment"); err != nil {
		return err
	}
	defer f.lock()()
	cp := *e
	cp.Selections = append([]model.AreaSelectionModel(nil), e.Selections...)
	f.state().enrollments[e.EnrollmentRequestID] = cp
	return nil
}

func (f *fakeStore) withEnrollments(st *memState, o model.PaymentOrderModel) *model.PaymentOrderModel {
	o.Enrollments = nil
	for _, e := range st.enrollments {
		if e.EnrollmentRequestOrderID == o.PaymentOrderID {
			o.Enrollments = append(o.Enrollments, e)
		}
	}
	sort.Slice(o.Enrollments, func(i, j int) bool {
		return o.Enrollments[i].EnrollmentRequestRequestedAt.Before(o.Enrollments[j].EnrollmentRequestRequestedAt)
	})
	return &o
}

func (f *fakeStore) GetOrder(_ context.Context, id uuid.UUID) (*model.PaymentOrderModel, error) {
	defer f.lock()()
	st := f.state()
	o, ok := st.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f.withEnrollments(st, o), nil
}

func (f *fakeStore) LockOrder(_ context.Context, id uuid.UUID) (*model.PaymentOrderModel, error) {
	if err := f.fail("LockOrder"); err != nil {
		return nil, err
	}
	defer f.lock()()
	o, ok := f.state().orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (f *fakeStore) FindOrderByNumberOrReference(_ context.Context, number int64, reference string) (*model.PaymentOrderModel, error) {
	defer f.lock()()
	st := f.state()
	for _, o := range st.orders {
		if (number > 0 && o.PaymentOrderNumber == number) ||
			(reference != "" && o.PaymentOrderReference != nil && *o.PaymentOrderReference == reference) {
			return f.withEnrollments(st, o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) ListOrders(_ context.Context, flt repository.OrderFilter) ([]model.PaymentOrderModel, int64, error) {
	defer f.lock()()
	st := f.state()
	var all []model.PaymentOrderModel
	for _, o := range st.orders {
		if flt.State != nil && o.PaymentOrderState != *flt.State {
			continue
		}
		if flt.From != nil && o.PaymentOrderCreatedAt.Before(*flt.From) {
			continue
		}
		if flt.To != nil && !o.PaymentOrderCreatedAt.Before(*flt.To) {
			continue
		}
		all = append(all, *f.withEnrollments(st, o))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PaymentOrderNumber > all[j].PaymentOrderNumber })

	total := int64(len(all))
	if flt.Offset >= len(all) {
		return nil, total, nil
	}
	end := flt.Offset + flt.Limit
	if flt.Limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[flt.Offset:end], total, nil
}

func (f *fakeStore) ReferenceInUse(_ context.Context, reference string, exceptOrder uuid.UUID) (bool, error) {
	defer f.lock()()
	for id, o := range f.state().orders {
		if id != exceptOrder && o.PaymentOrderReference != nil && *o.PaymentOrderReference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CountEnrollments(_ context.Context, orderID uuid.UUID) (int64, error) {
	defer f.lock()()
	var n int64
	for _, e := range f.state().enrollments {
		if e.EnrollmentRequestOrderID == orderID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) OrderStats(_ context.Context, flt repository.StatsFilter) (*repository.OrderStats, error) {
	defer f.lock()()
	if err := f.fail("OrderStats"); err != nil {
		return nil, err
	}
	st := f.state()

	totals := map[model.OrderState]*repository.StateTotal{}
	live := map[uuid.UUID]bool{}
	for _, o := range st.orders {
		if flt.From != nil && o.PaymentOrderCreatedAt.Before(*flt.From) {
			continue
		}
		if flt.To != nil && !o.PaymentOrderCreatedAt.Before(*flt.To) {
			continue
		}
		row, ok := totals[o.PaymentOrderState]
		if !ok {
			row = &repository.StateTotal{State: o.PaymentOrderState, Amount: decimal.Zero}
			totals[o.PaymentOrderState] = row
		}
		row.Orders++
		sum, err := row.Amount.Add(o.PaymentOrderAmount)
		if err != nil {
			return nil, err
		}
		row.Amount = sum
		if o.PaymentOrderState == model.OrderStatePending || o.PaymentOrderState == model.OrderStatePaid {
			live[o.PaymentOrderID] = true
		}
	}

	out := &repository.OrderStats{}
	for _, row := range totals {
		out.States = append(out.States, *row)
	}
	sort.Slice(out.States, func(i, j int) bool { return out.States[i].State < out.States[j].State })

	demand := map[uuid.UUID]*repository.AreaDemand{}
	for _, e := range st.enrollments {
		if !live[e.EnrollmentRequestOrderID] {
			continue
		}
		for _, sel := range e.Selections {
			d, ok := demand[sel.AreaSelectionAreaID]
			if !ok {
				d = &repository.AreaDemand{AreaID: sel.AreaSelectionAreaID, AreaName: sel.AreaSelectionAreaName}
				demand[sel.AreaSelectionAreaID] = d
			}
			d.Selections++
		}
	}
	for _, d := range demand {
		out.TopAreas = append(out.TopAreas, *d)
	}
	sort.Slice(out.TopAreas, func(i, j int) bool {
		a, b := out.TopAreas[i], out.TopAreas[j]
		if a.Selections != b.Selections {
			return a.Selections > b.Selections
		}
		return a.AreaName < b.AreaName
	})
	if flt.TopAreas > 0 && len(out.TopAreas) > flt.TopAreas {
		out.TopAreas = out.TopAreas[:flt.TopAreas]
	}
	return out, nil
}

func (f *fakeStore) TransitionOrder(_ context.Context, t model.OrderTransition) (bool, error) {
	if err := f.fail("TransitionOrder"); err != nil {
		return false, err
	}
	defer f.lock()()
	st := f.state()
	o, ok := st.orders[t.OrderID]
	if !ok || o.PaymentOrderState != t.From {
		return false, nil
	}
	if t.Reference != nil {
		for id, other := range st.orders {
			if id != t.OrderID && other.PaymentOrderReference != nil && *other.PaymentOrderReference == *t.Reference {
				return false, repository.ErrDuplicateReference
			}
		}
		ref := *t.Reference
		o.PaymentOrderReference = &ref
	}
	o.PaymentOrderState = t.To
	o.PaymentOrderUpdatedAt = t.At
	o.PaymentOrderHistory = append([]model.OrderHistoryEntry(nil), t.History...)
	if t.PaidAt != nil {
		paid := *t.PaidAt
		o.PaymentOrderPaidAt = &paid
	}
	if t.Observations != nil {
		obs := *t.Observations
		o.PaymentOrderObservations = &obs
	}
	st.orders[t.OrderID] = o
	return true, nil
}

func (f *fakeStore) ListOverdueForUpdate(_ context.Context, now time.Time) ([]model.PaymentOrderModel, error) {
	if err := f.fail("ListOverdueForUpdate"); err != nil {
		return nil, err
	}
	defer f.lock()()
	var out []model.PaymentOrderModel
	for _, o := range f.state().orders {
		if o.PaymentOrderState == model.OrderStatePending && o.PaymentOrderExpiresAt.Before(now) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentOrderExpiresAt.Before(out[j].PaymentOrderExpiresAt) })
	return out, nil
}

func (f *fakeStore) GetEnrollment(_ context.Context, id uuid.UUID) (*model.EnrollmentRequestModel, error) {
	defer f.lock()()
	e, ok := f.state().enrollments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (f *fakeStore) SetEnrollmentStates(_ context.Context, orderIDs []uuid.UUID, state model.EnrollmentState, at time.Time) (int64, error) {
	if err := f.fail("SetEnrollmentStates"); err != nil {
		return 0, err
	}
	defer f.lock()()
	st := f.state()
	ids := map[uuid.UUID]bool{}
	for _, id := range orderIDs {
		ids[id] = true
	}
	var n int64
	for k, e := range st.enrollments {
		if ids[e.EnrollmentRequestOrderID] {
			e.EnrollmentRequestState = state
			e.EnrollmentRequestUpdatedAt = at
			st.enrollments[k] = e
			n++
		}
	}
	return n, nil
}
