package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"go.uber.org/zap/zaptest"

	"olimpiada_backend/internals/features/finance/payment_orders/model"
	areaModel "olimpiada_backend/internals/features/olympiad/areas/model"
	convModel "olimpiada_backend/internals/features/olympiad/convocatorias/model"
	"olimpiada_backend/internals/helpers/apperr"
	"olimpiada_backend/internals/helpers/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evts ...events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evts...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Event
	}
	return out
}

type fixture struct {
	store     *fakeStore
	mgr       *Manager
	pub       *recordingPublisher
	now       time.Time
	requester uuid.UUID
	student   uuid.UUID
	conv      uuid.UUID
	math      uuid.UUID // priced by the call (16)
	physics   uuid.UUID // own price (20)
	chemistry uuid.UUID // priced by the call (16)
	outside   uuid.UUID // active but not part of the call
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.Parse(s)
	if err != nil {
		t.Fatalf("decimal.Parse(%q): %v", s, err)
	}
	return d
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newFakeStore(),
		pub:       &recordingPublisher{},
		now:       time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		requester: uuid.New(),
		student:   uuid.New(),
		conv:      uuid.New(),
		math:      uuid.New(),
		physics:   uuid.New(),
		chemistry: uuid.New(),
		outside:   uuid.New(),
	}

	st := f.store.state()
	st.accounts[f.requester] = true
	st.students[f.student] = true
	physicsCost := dec(t, "20")
	for id, a := range map[uuid.UUID]areaModel.AreaModel{
		f.math:      {AreaName: "Matemática"},
		f.physics:   {AreaName: "Física", AreaCost: &physicsCost},
		f.chemistry: {AreaName: "Química"},
		f.outside:   {AreaName: "Robótica"},
	} {
		a.AreaID = id
		a.AreaIsActive = true
		st.areas[id] = a
	}
	st.convs[f.conv] = convModel.ConvocatoriaModel{
		ConvocatoriaID:          f.conv,
		ConvocatoriaName:        "Olimpiada 2026",
		ConvocatoriaStartDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ConvocatoriaEndDate:     time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		ConvocatoriaCostPerArea: dec(t, "16"),
		ConvocatoriaMaxAreas:    2,
		ConvocatoriaIsActive:    true,
	}
	st.convAreas[f.conv] = []uuid.UUID{f.math, f.physics, f.chemistry}

	f.mgr = NewManager(f.store, Config{OrderTTL: 48 * time.Hour, Currency: "BOB"}, zaptest.NewLogger(t),
		WithClock(func() time.Time { return f.now }),
		WithPublisher(f.pub),
	)
	return f
}

func (f *fixture) input(areas ...uuid.UUID) CreateOrderInput {
	conv := f.conv
	return CreateOrderInput{RequesterID: f.requester, StudentID: f.student, ConvocatoriaID: &conv, AreaIDs: areas}
}

func (f *fixture) create(t *testing.T, areas ...uuid.UUID) *model.PaymentOrderModel {
	t.Helper()
	o, err := f.mgr.CreateOrder(context.Background(), f.input(areas...))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	return o
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *model.PaymentOrderModel {
	t.Helper()
	o, err := f.mgr.GetOrder(context.Background(), id)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	return o
}

func assertKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()
	if got := apperr.KindOf(err); got != want {
		t.Fatalf("Expected error kind %s, got %s (%v)", want, got, err)
	}
}

func assertEnrollments(t *testing.T, o *model.PaymentOrderModel, want model.EnrollmentState) {
	t.Helper()
	if len(o.Enrollments) == 0 {
		t.Fatalf("order %s has no enrollment requests", o.PaymentOrderID)
	}
	for _, e := range o.Enrollments {
		if e.EnrollmentRequestState != want {
			t.Errorf("enrollment %s: Expected state %s, got %s", e.EnrollmentRequestID, want, e.EnrollmentRequestState)
		}
	}
}

/* ============ CreateOrder ============ */

func TestCreateOrderSumsAreaCosts(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, f.math, f.physics)

	if o.PaymentOrderAmount.Cmp(dec(t, "36")) != 0 {
		t.Errorf("Expected amount 36, got %s", o.PaymentOrderAmount)
	}
	if o.PaymentOrderState != model.OrderStatePending {
		t.Errorf("Expected pending, got %s", o.PaymentOrderState)
	}
	if want := f.now.Add(48 * time.Hour); !o.PaymentOrderExpiresAt.Equal(want) {
		t.Errorf("Expected expiry %s, got %s", want, o.PaymentOrderExpiresAt)
	}
	if !o.PaymentOrderExpiresAt.Equal(o.PaymentOrderCreatedAt.Add(48 * time.Hour)) {
		t.Errorf("Expected expiry to be creation + 48h")
	}
	if o.PaymentOrderCurrency != "BOB" {
		t.Errorf("Expected BOB, got %s", o.PaymentOrderCurrency)
	}
	if o.PaymentOrderNumber != 1 || o.VoucherCode() != "ORD-000001" {
		t.Errorf("unexpected order number %d / %s", o.PaymentOrderNumber, o.VoucherCode())
	}

	stored := f.reload(t, o.PaymentOrderID)
	assertEnrollments(t, stored, model.EnrollmentStatePending)
	sel := stored.Enrollments[0].Selections
	if len(sel) != 2 {
		t.Fatalf("Expected 2 area selections, got %d", len(sel))
	}
	if sel[0].AreaSelectionCostSnapshot.Cmp(dec(t, "16")) != 0 || sel[1].AreaSelectionCostSnapshot.Cmp(dec(t, "20")) != 0 {
		t.Errorf("unexpected snapshots %s, %s", sel[0].AreaSelectionCostSnapshot, sel[1].AreaSelectionCostSnapshot)
	}
	if got := f.pub.types(); len(got) != 1 || got[0] != events.OrderCreated {
		t.Errorf("Expected one order.created event, got %v", got)
	}
}

func TestCreateOrderAmountIgnoresLaterPriceChanges(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, f.math, f.physics)

	st := f.store.state()
	a := st.areas[f.physics]
	raised := dec(t, "99")
	a.AreaCost = &raised
	st.areas[f.physics] = a
	c := st.convs[f.conv]
	c.ConvocatoriaCostPerArea = dec(t, "50")
	st.convs[f.conv] = c

	stored := f.reload(t, o.PaymentOrderID)
	if stored.PaymentOrderAmount.Cmp(dec(t, "36")) != 0 {
		t.Errorf("Expected amount to stay 36, got %s", stored.PaymentOrderAmount)
	}
	var sum decimal.Decimal
	for _, s := range stored.Enrollments[0].Selections {
		var err error
		if sum, err = sum.Add(s.AreaSelectionCostSnapshot); err != nil {
			t.Fatal(err)
		}
	}
	if sum.Cmp(stored.PaymentOrderAmount) != 0 {
		t.Errorf("Expected amount == sum of snapshots, got %s vs %s", stored.PaymentOrderAmount, sum)
	}
}

func TestCreateOrderUsesSingleOpenCall(t *testing.T) {
	f := newFixture(t)
	in := f.input(f.chemistry)
	in.ConvocatoriaID = nil

	o, err := f.mgr.CreateOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if o.PaymentOrderConvocatoriaID != f.conv {
		t.Errorf("Expected the open call to be used")
	}
}

func TestCreateOrderRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture) CreateOrderInput
		want  apperr.Kind
	}{
		{"no areas", func(f *fixture) CreateOrderInput { return f.input() }, apperr.KindValidation},
		{"duplicate area", func(f *fixture) CreateOrderInput { return f.input(f.math, f.math) }, apperr.KindValidation},
		{"more areas than the call allows", func(f *fixture) CreateOrderInput {
			return f.input(f.math, f.physics, f.chemistry)
		}, apperr.KindValidation},
		{"unknown area", func(f *fixture) CreateOrderInput { return f.input(f.math, uuid.New()) }, apperr.KindValidation},
		{"area outside the call", func(f *fixture) CreateOrderInput { return f.input(f.outside) }, apperr.KindValidation},
		{"closed call", func(f *fixture) CreateOrderInput {
			f.now = time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
			return f.input(f.math)
		}, apperr.KindValidation},
		{"no open call to default to", func(f *fixture) CreateOrderInput {
			f.now = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
			in := f.input(f.math)
			in.ConvocatoriaID = nil
			return in
		}, apperr.KindValidation},
		{"unknown call", func(f *fixture) CreateOrderInput {
			in := f.input(f.math)
			other := uuid.New()
			in.ConvocatoriaID = &other
			return in
		}, apperr.KindNotFound},
		{"unknown student", func(f *fixture) CreateOrderInput {
			in := f.input(f.math)
			in.StudentID = uuid.New()
			return in
		}, apperr.KindNotFound},
		{"unknown requester", func(f *fixture) CreateOrderInput {
			in := f.input(f.math)
			in.RequesterID = uuid.New()
			return in
		}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.mgr.CreateOrder(context.Background(), tt.setup(f))
			assertKind(t, err, tt.want)

			st := f.store.state()
			if len(st.orders) != 0 || len(st.enrollments) != 0 {
				t.Errorf("Expected nothing persisted, got %d orders and %d requests", len(st.orders), len(st.enrollments))
			}
			if len(f.pub.types()) != 0 {
				t.Errorf("Expected no events")
			}
		})
	}
}

func TestCreateOrderRollsBackOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		arrange func(s *fakeStore)
	}{
		{"commit fails", func(s *fakeStore) { s.failCommit = errors.New("could not serialize access") }},
		{"request insert fails", func(s *fakeStore) { s.failOn["CreateEnrollment"] = errors.New("connection reset") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.arrange(f.store)

			_, err := f.mgr.CreateOrder(context.Background(), f.input(f.math, f.physics))
			assertKind(t, err, apperr.KindPersistence)

			st := f.store.state()
			if len(st.orders) != 0 || len(st.enrollments) != 0 {
				t.Errorf("Expected a full rollback, got %d orders and %d requests", len(st.orders), len(st.enrollments))
			}
		})
	}
}

/* ============ Approve / Reject ============ */

func TestApprovePaymentOnlyOnce(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, f.math)
	f.now = f.now.Add(time.Hour)
	admin := uuid.New()
	note := "deposit checked"

	paid, err := f.mgr.ApprovePayment(context.Background(), o.PaymentOrderID, ApproveInput{Reference: "REF123", Observations: &note, ActorID: &admin})
	if err != nil {
		t.Fatalf("ApprovePayment() error = %v", err)
	}
	if paid.PaymentOrderState != model.OrderStatePaid {
		t.Errorf("Expected paid, got %s", paid.PaymentOrderState)
	}

	stored := f.reload(t, o.PaymentOrderID)
	if stored.PaymentOrderReference == nil || *stored.PaymentOrderReference != "REF123" {
		t.Errorf("Expected reference REF123, got %v", stored.PaymentOrderReference)
	}
	if stored.PaymentOrderPaidAt == nil || !stored.PaymentOrderPaidAt.Equal(f.now) {
		t.Errorf("Expected paid at %s, got %v", f.now, stored.PaymentOrderPaidAt)
	}
	if stored.PaymentOrderObservations == nil || *stored.PaymentOrderObservations != note {
		t.Errorf("Expected observations to be stored")
	}
	last := stored.PaymentOrderHistory[len(stored.PaymentOrderHistory)-1]
	if last.State != model.OrderStatePaid || last.Actor == nil || *last.Actor != admin {
		t.Errorf("unexpected history entry %+v", last)
	}
	assertEnrollments(t, stored, model.EnrollmentStateConfirmed)

	for _, ref := range []string{"REF123", "REF999"} {
		_, err = f.mgr.ApprovePayment(context.Background(), o.PaymentOrderID, ApproveInput{Reference: ref})
		assertKind(t, err, apperr.KindInvalidState)
	}
	if got := f.pub.types(); len(got) != 2 || got[1] != events.OrderPaid {
		t.Errorf("Expected created then paid events, got %v", got)
	}
}

func TestApprovePaymentDuplicateReference(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, f.math)
	second := f.create(t, f.physics)

	if _, err := f.mgr.ApprovePayment(context.Background(), first.PaymentOrderID, ApproveInput{Reference: "REF123"}); err != nil {
		t.Fatalf("ApprovePayment(first) error = %v", err)
	}
	_, err := f.mgr.ApprovePayment(context.Background(), second.PaymentOrderID, ApproveInput{Reference: "REF123"})
	assertKind(t, err, apperr.KindConflict)

	stored := f.reload(t, second.PaymentOrderID)
	if stored.PaymentOrderState != model.OrderStatePending || stored.PaymentOrderReference != nil || stored.PaymentOrderPaidAt != nil {
		t.Errorf("Expected second order untouched, got %+v", stored)
	}
	assertEnrollments(t, stored, model.EnrollmentStatePending)
}

func TestApprovePaymentErrors(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, f.math)

	tests := []struct {
		name string
		id   uuid.UUID
		ref  string
		want apperr.Kind
	}{
		{"unknown order", uuid.New(), "REF1", apperr.KindNotFound},
		{"blank reference", o.PaymentOrderID, "   ", apperr.KindValidation},
		{"reference too long", o.PaymentOrderID, strings.Repeat("R", 51), apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.mgr.ApprovePayment(context.Background(), tt.id, ApproveInput{Reference: tt.ref})
			assertKind(t, err, tt.want)
		})
	}
	if f.reload(t, o.PaymentOrderID).PaymentOrderState != model.OrderStatePending {
		t.Error("Expected order to stay pending")
	}
}

func TestApprovePaymentWithoutRequests(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, f.math)
	st := f.store.state()
	for id := range st.enrollments {
		delete(st.enrollments, id)
	}

	_, err := f.mgr.ApprovePayment(context.Background(), o.PaymentOrderID, ApproveInput{Reference: "REF1"})
	assertKind(t, err, apperr.KindNotFound)
	if f.reload(t, o.PaymentOrderID).PaymentOrderState != model.OrderStatePending {
		t.Error("Expected the approval to roll back")
	}
}

func TestRejectOrder(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, f.math, f.physics)

	if _, err := f.mgr.RejectOrder(context.Background(), o.PaymentOrderID, RejectInput{}); err != nil {
		t.Fatalf("RejectOrder() error = %v", err)
	}
	stored := f.reload(t, o.PaymentOrderID)
	if stored.PaymentOrderState != model.OrderStateCancelled {
		t.Errorf("Expected cancelled, got %s", stored.PaymentOrderState)
	}
	assertEnrollments(t, stored, model.EnrollmentStateCancelled)

	_, err := f.mgr.RejectOrder(context.Background(), o.PaymentOrderID, RejectInput{})
	assertKind(t, err, apperr.KindInvalidState)
	_, err = f.mgr.RejectOrder(context.Background(), uuid.New(), RejectInput{})
	assertKind(t, err, apperr.KindNotFound)
}

func TestTerminalStatesNeverChange(t *testing.T) {
	terminate := map[model.OrderState]func(f *fixture, id uuid.UUID) error{
		model.OrderStatePaid: func(f *fixture, id uuid.UUID) error {
			_, err := f.mgr.ApprovePayment(context.Background(), id, ApproveInput{Reference: "PAID-1"})
			return err
		},
		model.OrderStateCancelled: func(f *fixture, id uuid.UUID) error {
			_, err := f.mgr.RejectOrder(context.Background(), id, RejectInput{})
			return err
		},
		model.OrderStateExpired: func(f *fixture, id uuid.UUID) error {
			f.now = f.now.Add(49 * time.Hour)
			_, err := f.mgr.ExpireOverdue(context.Background())
			return err
		},
	}
	for state, fn := range terminate {
		t.Run(string(state), func(t *testing.T) {
			f := newFixture(t)
			o := f.create(t, f.math)
			if err := fn(f, o.PaymentOrderID); err != nil {
				t.Fatalf("reaching %s: %v", state, err)
			}

			_, err := f.mgr.ApprovePayment(context.Background(), o.PaymentOrderID, ApproveInput{Reference: "LATE-1"})
			assertKind(t, err, apperr.KindInvalidState)
			_, err = f.mgr.RejectOrder(context.Background(), o.PaymentOrderID, RejectInput{})
			assertKind(t, err, apperr.KindInvalidState)

			f.now = f.now.Add(100 * time.Hour)
			if n, err := f.mgr.ExpireOverdue(context.Background()); err != nil || n != 0 {
				t.Errorf("Expected sweep to skip terminal order, got n=%d err=%v", n, err)
			}
			if got := f.reload(t, o.PaymentOrderID).PaymentOrderState; got != state {
				t.Errorf("Expected state to stay %s, got %s", state, got)
			}
		})
	}
}

func TestConcurrentApproveAndReject(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, f.math)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.mgr.ApprovePayment(context.Background(), o.PaymentOrderID, ApproveInput{Reference: "RACE-1"})
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.mgr.RejectOrder(context.Background(), o.PaymentOrderID, RejectInput{})
	}()
	wg.Wait()

	var ok, invalid int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.KindOf(err) == apperr.KindInvalidState:
			invalid++
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if ok != 1 || invalid != 1 {
		t.Errorf("Expected one winner and one InvalidState, got ok=%d invalid=%d", ok, invalid)
	}

	stored := f.reload(t, o.PaymentOrderID)
	want := model.EnrollmentStateCancelled
	if stored.PaymentOrderState == model.OrderStatePaid {
		want = model.EnrollmentStateConfirmed
	}
	assertEnrollments(t, stored, want)
}

/* ============ ExpireOverdue ============ */

func TestExpireOverdue(t *testing.T) {
	f := newFixture(t)
	created := f.now
	stale := f.create(t, f.math)
	f.now = created.Add(2 * time.Hour)
	fresh := f.create(t, f.physics)

	f.now = created.Add(49 * time.Hour)
	n, err := f.mgr.ExpireOverdue(context.Background())
	if err != nil {
		t.Fatalf("ExpireOverdue() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 expired order, got %d", n)
	}

	got := f.reload(t, stale.PaymentOrderID)
	if got.PaymentOrderState != model.OrderStateExpired {
		t.Errorf("Expected expired, got %s", got.PaymentOrderState)
	}
	assertEnrollments(t, got, model.EnrollmentStateCancelled)

	untouched := f.reload(t, fresh.PaymentOrderID)
	if untouched.PaymentOrderState != model.OrderStatePending {
		t.Errorf("Expected fresh order pending, got %s", untouched.PaymentOrderState)
	}
	assertEnrollments(t, untouched, model.EnrollmentStatePending)

	if types := f.pub.types(); types[len(types)-1] != events.OrderExpired {
		t.Errorf("Expected an order.expired event last, got %v", types)
	}
}

func TestExpireOverdueBoundaryAndNoop(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, f.math)

	f.now = o.PaymentOrderExpiresAt
	n, err := f.mgr.ExpireOverdue(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("Expected a no-op at the exact expiry, got n=%d err=%v", n, err)
	}
	if f.reload(t, o.PaymentOrderID).PaymentOrderState != model.OrderStatePending {
		t.Error("Expected order still pending at its expiry instant")
	}
}

func TestExpireOverdueIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, f.math)
	b := f.create(t, f.physics)
	f.now = f.now.Add(72 * time.Hour)
	f.store.failCommit = errors.New("commit failed")

	_, err := f.mgr.ExpireOverdue(context.Background())
	assertKind(t, err, apperr.KindPersistence)

	f.store.failCommit = nil
	for _, id := range []uuid.UUID{a.PaymentOrderID, b.PaymentOrderID} {
		o := f.reload(t, id)
		if o.PaymentOrderState != model.OrderStatePending {
			t.Errorf("Expected %s to stay pending after failed sweep, got %s", id, o.PaymentOrderState)
		}
		assertEnrollments(t, o, model.EnrollmentStatePending)
	}
	for _, typ := range f.pub.types() {
		if typ == events.OrderExpired {
			t.Error("Expected no expiry events for a failed sweep")
		}
	}

	n, err := f.mgr.ExpireOverdue(context.Background())
	if err != nil || n != 2 {
		t.Errorf("Expected the next run to expire both, got n=%d err=%v", n, err)
	}
}

/* ============ Reads & supplements ============ */

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	o := f.create(t, f.math)
	if _, err := f.mgr.ApprovePayment(context.Background(), o.PaymentOrderID, ApproveInput{Reference: "REF-OK"}); err != nil {
		t.Errorf("Expected approval to succeed despite publisher failure, got %v", err)
	}
}

func TestFindPendingByCode(t *testing.T) {
	f := newFixture(t)
	pending := f.create(t, f.math)
	paid := f.create(t, f.physics)
	if _, err := f.mgr.ApprovePayment(context.Background(), paid.PaymentOrderID, ApproveInput{Reference: "BANK-777"}); err != nil {
		t.Fatal(err)
	}

	for _, code := range []string{pending.VoucherCode(), "ord-1", "1"} {
		o, err := f.mgr.FindPendingByCode(context.Background(), code)
		if err != nil {
			t.Fatalf("FindPendingByCode(%q) error = %v", code, err)
		}
		if o.PaymentOrderID != pending.PaymentOrderID {
			t.Errorf("FindPendingByCode(%q) returned the wrong order", code)
		}
	}

	_, err := f.mgr.FindPendingByCode(context.Background(), "BANK-777")
	assertKind(t, err, apperr.KindInvalidState)
	_, err = f.mgr.FindPendingByCode(context.Background(), "ORD-000999")
	assertKind(t, err, apperr.KindNotFound)
	_, err = f.mgr.FindPendingByCode(context.Background(), " ")
	assertKind(t, err, apperr.KindValidation)
}

func TestConfirmEnrollmentPayment(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, f.math)
	enrollmentID := o.Enrollments[0].EnrollmentRequestID

	if _, err := f.mgr.ConfirmEnrollmentPayment(context.Background(), enrollmentID, ApproveInput{Reference: "REF-E1"}); err != nil {
		t.Fatalf("ConfirmEnrollmentPayment() error = %v", err)
	}
	stored := f.reload(t, o.PaymentOrderID)
	if stored.PaymentOrderState != model.OrderStatePaid {
		t.Errorf("Expected paid, got %s", stored.PaymentOrderState)
	}
	assertEnrollments(t, stored, model.EnrollmentStateConfirmed)

	_, err := f.mgr.ConfirmEnrollmentPayment(context.Background(), uuid.New(), ApproveInput{Reference: "REF-E2"})
	assertKind(t, err, apperr.KindNotFound)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, f.math)
	f.create(t, f.physics)
	f.create(t, f.chemistry)
	if _, err := f.mgr.RejectOrder(context.Background(), a.PaymentOrderID, RejectInput{}); err != nil {
		t.Fatal(err)
	}

	pending := model.OrderStatePending
	out, total, err := f.mgr.ListOrders(context.Background(), ListFilter{State: &pending, Page: 1, PerPage: 1})
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if total != 2 || len(out) != 1 {
		t.Errorf("Expected total 2 with one row on the page, got total=%d rows=%d", total, len(out))
	}
	if out[0].PaymentOrderNumber != 3 {
		t.Errorf("Expected newest first, got order %d", out[0].PaymentOrderNumber)
	}

	bad := model.OrderState("refunded")
	_, _, err = f.mgr.ListOrders(context.Background(), ListFilter{State: &bad})
	assertKind(t, err, apperr.KindValidation)
}

func TestOrderStats(t *testing.T) {
	f := newFixture(t)
	paid := f.create(t, f.math, f.physics)
	f.create(t, f.physics)
	rejected := f.create(t, f.chemistry)
	if _, err := f.mgr.ApprovePayment(context.Background(), paid.PaymentOrderID, ApproveInput{Reference: "BNB-100"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.mgr.RejectOrder(context.Background(), rejected.PaymentOrderID, RejectInput{}); err != nil {
		t.Fatal(err)
	}
	cutoff := f.now.Add(time.Hour)
	f.now = f.now.Add(72 * time.Hour)
	f.create(t, f.math)

	stats, err := f.mgr.OrderStats(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("OrderStats() error = %v", err)
	}
	want := map[model.OrderState]int64{
		model.OrderStatePending:   2,
		model.OrderStatePaid:      1,
		model.OrderStateCancelled: 1,
		model.OrderStateExpired:   0,
	}
	for st, n := range want {
		if got, ok := stats.Orders[st]; !ok || got != n {
			t.Errorf("state %s: Expected %d orders, got %d (present=%v)", st, n, got, ok)
		}
	}
	if stats.Total != 4 {
		t.Errorf("Expected 4 orders in total, got %d", stats.Total)
	}
	if stats.PaidAmount.Cmp(dec(t, "36")) != 0 || stats.Currency != "BOB" {
		t.Errorf("Expected 36 BOB paid, got %s %s", stats.PaidAmount, stats.Currency)
	}
	// chemistry only sits on a rejected order
	if len(stats.TopAreas) != 2 {
		t.Fatalf("Expected 2 areas with live demand, got %+v", stats.TopAreas)
	}
	if stats.TopAreas[0].AreaID != f.physics || stats.TopAreas[0].Selections != 2 {
		t.Errorf("Expected physics first with 2 selections, got %+v", stats.TopAreas[0])
	}
	if stats.TopAreas[1].AreaID != f.math || stats.TopAreas[1].Selections != 2 {
		t.Errorf("Expected math second with 2 selections, got %+v", stats.TopAreas[1])
	}

	windowed, err := f.mgr.OrderStats(context.Background(), nil, &cutoff)
	if err != nil {
		t.Fatalf("OrderStats() error = %v", err)
	}
	if windowed.Total != 3 || windowed.Orders[model.OrderStatePending] != 1 {
		t.Errorf("Expected the late order outside the window, got %+v", windowed.Orders)
	}
	if len(windowed.TopAreas) != 2 || windowed.TopAreas[1].Selections != 1 {
		t.Errorf("Expected math to drop to one selection, got %+v", windowed.TopAreas)
	}
}

func TestOrderStatsRejectsBadRangeAndWrapsStoreErrors(t *testing.T) {
	f := newFixture(t)
	from := f.now
	to := f.now.Add(-time.Hour)
	_, err := f.mgr.OrderStats(context.Background(), &from, &to)
	assertKind(t, err, apperr.KindValidation)

	f.store.failOn["OrderStats"] = errors.New("connection reset")
	_, err = f.mgr.OrderStats(context.Background(), nil, nil)
	assertKind(t, err, apperr.KindPersistence)
}

func TestParseVoucherCode(t *testing.T) {
	tests := map[string]int64{"ORD-000123": 123, "ord-42": 42, "7": 7, "ORD-": 0, "REF123": 0, "-5": 0, "": 0}
	for in, want := range tests {
		got, ok := ParseVoucherCode(in)
		if got != want || ok != (want > 0) {
			t.Errorf("ParseVoucherCode(%q) = %d, %v; want %d", in, got, ok, want)
		}
	}
}
