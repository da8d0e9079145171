package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"olimpiada_backend/internals/features/finance/payment_orders/model"
	"olimpiada_backend/internals/features/finance/payment_orders/repository"
	areaModel "olimpiada_backend/internals/features/olympiad/areas/model"
	convModel "olimpiada_backend/internals/features/olympiad/convocatorias/model"
	"olimpiada_backend/internals/helpers/apperr"
	"olimpiada_backend/internals/helpers/events"
	"olimpiada_backend/internals/helpers/metrics"
)

const maxReferenceLen = 50

type Config struct {
	OrderTTL time.Duration
	Currency string
}

// Manager owns every payment-order state change. Each operation runs in one
// transaction and re-checks the order state under a row lock before writing.
type Manager struct {
	store     repository.Store
	cfg       Config
	log       *zap.Logger
	now       func() time.Time
	publisher events.Publisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func NewManager(store repository.Store, cfg Config, log *zap.Logger, opts ...Option) *Manager {
	if cfg.OrderTTL <= 0 {
		cfg.OrderTTL = 48 * time.Hour
	}
	if cfg.Currency == "" {
		cfg.Currency = "BOB"
	}
	m := &Manager{
		store:     store,
		cfg:       cfg,
		log:       log.Named("payment_orders"),
		now:       time.Now,
		publisher: events.NoopPublisher{},
		tracer:    otel.Tracer("olimpiada/payment_orders"),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

/* =========================================================
   Inputs
========================================================= */

type CreateOrderInput struct {
	RequesterID    uuid.UUID
	StudentID      uuid.UUID
	ConvocatoriaID *uuid.UUID
	AreaIDs        []uuid.UUID
}

type ApproveInput struct {
	Reference    string
	Observations *string
	ActorID      *uuid.UUID
}

type RejectInput struct {
	Observations *string
	ActorID      *uuid.UUID
}

type ListFilter struct {
	State   *model.OrderState
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

/* =========================================================
   CreateOrder
========================================================= */

func (m *Manager) CreateOrder(ctx context.Context, in CreateOrderInput) (order *model.PaymentOrderModel, err error) {
	ctx, span := m.tracer.Start(ctx, "PaymentOrders.CreateOrder",
		trace.WithAttributes(attribute.Int("areas.count", len(in.AreaIDs))))
	defer func() { endSpan(span, err) }()

	if err := validateAreaIDs(in.AreaIDs); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	err = m.store.WithTx(ctx, func(tx repository.Store) error {
		if ok, err := tx.AccountExists(ctx, in.RequesterID); err != nil {
			return err
		} else if !ok {
			return apperr.NotFound("account %s not found", in.RequesterID)
		}
		if ok, err := tx.StudentExists(ctx, in.StudentID); err != nil {
			return err
		} else if !ok {
			return apperr.NotFound("student %s not found", in.StudentID)
		}

		conv, err := m.resolveConvocatoria(ctx, tx, in.ConvocatoriaID, now)
		if err != nil {
			return err
		}
		if len(in.AreaIDs) > conv.ConvocatoriaMaxAreas {
			return apperr.ValidationField("areaIds",
				fmt.Sprintf("at most %d area(s) may be selected in this call", conv.ConvocatoriaMaxAreas))
		}

		areas, err := tx.FindConvocatoriaAreas(ctx, conv.ConvocatoriaID, in.AreaIDs)
		if err != nil {
			return err
		}
		selections, amount, err := priceSelections(conv, in.AreaIDs, areas)
		if err != nil {
			return err
		}

		o := &model.PaymentOrderModel{
			PaymentOrderID:             uuid.New(),
			PaymentOrderRequesterID:    in.RequesterID,
			PaymentOrderConvocatoriaID: conv.ConvocatoriaID,
			PaymentOrderAmount:         amount,
			PaymentOrderCurrency:       m.cfg.Currency,
			PaymentOrderState:          model.OrderStatePending,
			PaymentOrderExpiresAt:      now.Add(m.cfg.OrderTTL),
			PaymentOrderHistory: []model.OrderHistoryEntry{
				{State: model.OrderStatePending, At: now, Actor: &in.RequesterID},
			},
			PaymentOrderCreatedAt: now,
			PaymentOrderUpdatedAt: now,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}

		e := &model.EnrollmentRequestModel{
			EnrollmentRequestID:                   uuid.New(),
			EnrollmentRequestStudentID:            in.StudentID,
			EnrollmentRequestConvocatoriaID:       conv.ConvocatoriaID,
			EnrollmentRequestOrderID:              o.PaymentOrderID,
			EnrollmentRequestResponsibleAccountID: in.RequesterID,
			EnrollmentRequestState:                model.EnrollmentStatePending,
			EnrollmentRequestRequestedAt:          now,
			EnrollmentRequestUpdatedAt:            now,
			Selections:                            selections,
		}
		for i := range e.Selections {
			e.Selections[i].AreaSelectionEnrollmentRequestID = e.EnrollmentRequestID
			e.Selections[i].AreaSelectionCreatedAt = now
		}
		if err := tx.CreateEnrollment(ctx, e); err != nil {
			return err
		}

		o.Enrollments = []model.EnrollmentRequestModel{*e}
		order = o
		return nil
	})
	if err != nil {
		return nil, m.wrap("create order", err)
	}

	span.SetAttributes(attribute.String("order.id", order.PaymentOrderID.String()))
	m.log.Info("payment order created",
		zap.String("order_id", order.PaymentOrderID.String()),
		zap.Int64("order_number", order.PaymentOrderNumber),
		zap.String("amount", order.PaymentOrderAmount.String()),
		zap.Time("expires_at", order.PaymentOrderExpiresAt),
	)
	m.metrics.ObserveTransition(string(model.OrderStatePending))
	m.publish(ctx, eventFor(events.OrderCreated, order, now))
	return order, nil
}

func validateAreaIDs(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return apperr.ValidationField("areaIds", "at least one area must be selected")
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return apperr.ValidationField("areaIds", "area ids must be valid uuids")
		}
		if _, dup := seen[id]; dup {
			return apperr.ValidationField("areaIds", "an area may be selected only once")
		}
		seen[id] = struct{}{}
	}
	return nil
}

// resolveConvocatoria falls back to the single open call when none is given.
func (m *Manager) resolveConvocatoria(ctx context.Context, tx repository.Store, id *uuid.UUID, now time.Time) (*convModel.ConvocatoriaModel, error) {
	if id == nil {
		open, err := tx.FindOpenConvocatorias(ctx, now)
		if err != nil {
			return nil, err
		}
		switch len(open) {
		case 0:
			return nil, apperr.ValidationField("convocatoriaId", "there is no open competition call")
		case 1:
			return &open[0], nil
		default:
			return nil, apperr.ValidationField("convocatoriaId", "several competition calls are open, convocatoriaId is required")
		}
	}

	conv, err := tx.FindConvocatoria(ctx, *id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("competition call %s not found", *id)
	}
	if err != nil {
		return nil, err
	}
	if !conv.IsOpen(now) {
		return nil, apperr.ValidationField("convocatoriaId", "the competition call is not open for registration")
	}
	return conv, nil
}

// priceSelections snapshots each area's cost: its own price when set, the
// call's per-area price otherwise. Selections keep the requested order.
func priceSelections(conv *convModel.ConvocatoriaModel, ids []uuid.UUID, areas []areaModel.AreaModel) ([]model.AreaSelectionModel, decimal.Decimal, error) {
	byID := make(map[uuid.UUID]areaModel.AreaModel, len(areas))
	for _, a := range areas {
		byID[a.AreaID] = a
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, decimal.Zero, apperr.ValidationField("areaIds",
			"unknown or unavailable area(s) for this call: "+strings.Join(missing, ", "))
	}

	total := decimal.Zero
	out := make([]model.AreaSelectionModel, 0, len(ids))
	for _, id := range ids {
		a := byID[id]
		cost := conv.ConvocatoriaCostPerArea
		if a.AreaCost != nil {
			cost = *a.AreaCost
		}
		var err error
		if total, err = total.Add(cost); err != nil {
			return nil, decimal.Zero, fmt.Errorf("sum area costs: %w", err)
		}
		out = append(out, model.AreaSelectionModel{
			AreaSelectionAreaID:       id,
			AreaSelectionAreaName:     a.AreaName,
			AreaSelectionCostSnapshot: cost,
		})
	}
	if !total.IsPos() {
		return nil, decimal.Zero, apperr.ValidationField("areaIds", "the selected areas have no price configured")
	}
	return out, total, nil
}

/* =========================================================
   Approve / Reject
========================================================= */

func (m *Manager) ApprovePayment(ctx context.Context, orderID uuid.UUID, in ApproveInput) (order *model.PaymentOrderModel, err error) {
	ctx, span := m.tracer.Start(ctx, "PaymentOrders.ApprovePayment",
		trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer func() { endSpan(span, err) }()

	ref := strings.TrimSpace(in.Reference)
	switch {
	case ref == "":
		return nil, apperr.ValidationField("paymentReference", "payment reference is required")
	case len(ref) > maxReferenceLen:
		return nil, apperr.ValidationField("paymentReference",
			fmt.Sprintf("payment reference must be at most %d characters", maxReferenceLen))
	}

	now := m.now().UTC()
	order, err = m.transition(ctx, orderID, model.OrderStatePaid, now, func(tx repository.Store, o *model.PaymentOrderModel, t *model.OrderTransition) error {
		inUse, err := tx.ReferenceInUse(ctx, ref, o.PaymentOrderID)
		if err != nil {
			return err
		}
		if inUse {
			return apperr.Conflict("payment reference %q is already used by another order", ref)
		}
		n, err := tx.CountEnrollments(ctx, o.PaymentOrderID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("no enrollment request is linked to order %s", o.PaymentOrderID)
		}
		t.PaidAt = &now
		t.Reference = &ref
		t.Observations = in.Observations
		t.History[len(t.History)-1].Actor = in.ActorID
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("payment order approved",
		zap.String("order_id", orderID.String()),
		zap.String("payment_reference", ref),
	)
	m.publish(ctx, eventFor(events.OrderPaid, order, now))
	return order, nil
}

func (m *Manager) RejectOrder(ctx context.Context, orderID uuid.UUID, in RejectInput) (order *model.PaymentOrderModel, err error) {
	ctx, span := m.tracer.Start(ctx, "PaymentOrders.RejectOrder",
		trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer func() { endSpan(span, err) }()

	now := m.now().UTC()
	order, err = m.transition(ctx, orderID, model.OrderStateCancelled, now, func(_ repository.Store, _ *model.PaymentOrderModel, t *model.OrderTransition) error {
		t.Observations = in.Observations
		t.History[len(t.History)-1].Actor = in.ActorID
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("payment order rejected", zap.String("order_id", orderID.String()))
	m.publish(ctx, eventFor(events.OrderCancelled, order, now))
	return order, nil
}

// transition locks the order, checks it is still pending, lets prepare add
// target-specific fields, then writes the order and cascades to its requests.
func (m *Manager) transition(
	ctx context.Context,
	orderID uuid.UUID,
	to model.OrderState,
	now time.Time,
	prepare func(tx repository.Store, o *model.PaymentOrderModel, t *model.OrderTransition) error,
) (*model.PaymentOrderModel, error) {
	var out *model.PaymentOrderModel
	err := m.store.WithTx(ctx, func(tx repository.Store) error {
		o, err := tx.LockOrder(ctx, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("order %s not found", orderID)
		}
		if err != nil {
			return err
		}
		if o.PaymentOrderState != model.OrderStatePending {
			return apperr.InvalidState("order %s is %s and can no longer change", orderID, o.PaymentOrderState)
		}

		t := newTransition(o, to, now)
		if err := prepare(tx, o, &t); err != nil {
			return err
		}

		ok, err := tx.TransitionOrder(ctx, t)
		if errors.Is(err, repository.ErrDuplicateReference) {
			return apperr.Conflict("payment reference %q is already used by another order", deref(t.Reference))
		}
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("order %s changed state concurrently", orderID)
		}
		if _, err := tx.SetEnrollmentStates(ctx, []uuid.UUID{orderID}, to.MirrorState(), now); err != nil {
			return err
		}

		applyTransition(o, t)
		out = o
		return nil
	})
	if err != nil {
		return nil, m.wrap(fmt.Sprintf("move order to %s", to), err)
	}
	m.metrics.ObserveTransition(string(to))
	return out, nil
}

func newTransition(o *model.PaymentOrderModel, to model.OrderState, now time.Time) model.OrderTransition {
	history := make([]model.OrderHistoryEntry, 0, len(o.PaymentOrderHistory)+1)
	history = append(history, o.PaymentOrderHistory...)
	history = append(history, model.OrderHistoryEntry{State: to, At: now})
	return model.OrderTransition{
		OrderID: o.PaymentOrderID,
		From:    model.OrderStatePending,
		To:      to,
		At:      now,
		History: history,
	}
}

func applyTransition(o *model.PaymentOrderModel, t model.OrderTransition) {
	o.PaymentOrderState = t.To
	o.PaymentOrderUpdatedAt = t.At
	o.PaymentOrderHistory = t.History
	if t.PaidAt != nil {
		o.PaymentOrderPaidAt = t.PaidAt
	}
	if t.Reference != nil {
		o.PaymentOrderReference = t.Reference
	}
	if t.Observations != nil {
		o.PaymentOrderObservations = t.Observations
	}
	for i := range o.Enrollments {
		o.Enrollments[i].EnrollmentRequestState = t.To.MirrorState()
		o.Enrollments[i].EnrollmentRequestUpdatedAt = t.At
	}
}

/* =========================================================
   ExpireOverdue (sweep body)
========================================================= */

// ExpireOverdue moves every pending order whose expiry has passed to expired and
// cancels its requests, all in a single transaction. A failed commit expires nothing.
func (m *Manager) ExpireOverdue(ctx context.Context) (count int, err error) {
	ctx, span := m.tracer.Start(ctx, "PaymentOrders.ExpireOverdue")
	defer func() { endSpan(span, err) }()

	now := m.now().UTC()
	var expired []model.PaymentOrderModel
	err = m.store.WithTx(ctx, func(tx repository.Store) error {
		expired = expired[:0]
		overdue, err := tx.ListOverdueForUpdate(ctx, now)
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(overdue))
		for i := range overdue {
			o := &overdue[i]
			t := newTransition(o, model.OrderStateExpired, now)
			t.History[len(t.History)-1].Note = "expired by sweep"
			ok, err := tx.TransitionOrder(ctx, t)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			applyTransition(o, t)
			ids = append(ids, o.PaymentOrderID)
			expired = append(expired, *o)
		}
		_, err = tx.SetEnrollmentStates(ctx, ids, model.EnrollmentStateCancelled, now)
		return err
	})
	if err != nil {
		return 0, m.wrap("expire overdue orders", err)
	}

	span.SetAttributes(attribute.Int("orders.expired", len(expired)))
	if len(expired) == 0 {
		return 0, nil
	}

	evts := make([]events.OrderEvent, 0, len(expired))
	for i := range expired {
		m.metrics.ObserveTransition(string(model.OrderStateExpired))
		evts = append(evts, eventFor(events.OrderExpired, &expired[i], now))
	}
	m.publish(ctx, evts...)
	return len(expired), nil
}

/* =========================================================
   Reads
========================================================= */

func (m *Manager) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.PaymentOrderModel, error) {
	o, err := m.store.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("order %s not found", orderID)
	}
	if err != nil {
		return nil, m.wrap("get order", err)
	}
	return o, nil
}

func (m *Manager) ListOrders(ctx context.Context, f ListFilter) ([]model.PaymentOrderModel, int64, error) {
	if f.State != nil && !f.State.Valid() {
		return nil, 0, apperr.ValidationField("state", "unknown order state "+string(*f.State))
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, 0, apperr.ValidationField("to", "the end date must not be before the start date")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 10
	}

	out, total, err := m.store.ListOrders(ctx, repository.OrderFilter{
		State:  f.State,
		From:   f.From,
		To:     f.To,
		Offset: (f.Page - 1) * f.PerPage,
		Limit:  f.PerPage,
	})
	if err != nil {
		return nil, 0, m.wrap("list orders", err)
	}
	return out, total, nil
}

// FindPendingByCode resolves a scanned voucher code, a bare order number or a
// payment reference to an order that still awaits payment.
// OrderStats is the admin report over orders created in [From, To).
type OrderStats struct {
	From       *time.Time
	To         *time.Time
	Orders     map[model.OrderState]int64
	Total      int64
	PaidAmount decimal.Decimal
	Currency   string
	TopAreas   []repository.AreaDemand
}

const topAreasLimit = 5

func (m *Manager) OrderStats(ctx context.Context, from, to *time.Time) (stats *OrderStats, err error) {
	ctx, span := m.tracer.Start(ctx, "PaymentOrders.OrderStats")
	defer func() { endSpan(span, err) }()

	if from != nil && to != nil && !from.Before(*to) {
		return nil, apperr.ValidationField("to", "the end date must not be before the start date")
	}

	raw, err := m.store.OrderStats(ctx, repository.StatsFilter{From: from, To: to, TopAreas: topAreasLimit})
	if err != nil {
		return nil, m.wrap("order stats", err)
	}

	stats = &OrderStats{
		From:       from,
		To:         to,
		Orders:     map[model.OrderState]int64{},
		PaidAmount: decimal.Zero,
		Currency:   m.cfg.Currency,
		TopAreas:   raw.TopAreas,
	}
	for _, st := range []model.OrderState{model.OrderStatePending, model.OrderStatePaid, model.OrderStateCancelled, model.OrderStateExpired} {
		stats.Orders[st] = 0
	}
	for _, row := range raw.States {
		stats.Orders[row.State] += row.Orders
		stats.Total += row.Orders
		if row.State == model.OrderStatePaid {
			stats.PaidAmount = row.Amount
		}
	}
	if stats.TopAreas == nil {
		stats.TopAreas = []repository.AreaDemand{}
	}
	return stats, nil
}

func (m *Manager) FindPendingByCode(ctx context.Context, code string) (*model.PaymentOrderModel, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.ValidationField("code", "a voucher code or payment reference is required")
	}

	number, _ := ParseVoucherCode(code)
	o, err := m.store.FindOrderByNumberOrReference(ctx, number, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("no order matches %q", code)
	}
	if err != nil {
		return nil, m.wrap("find order by code", err)
	}
	if o.PaymentOrderState != model.OrderStatePending {
		return nil, apperr.InvalidState("order %s was already processed (%s)", o.VoucherCode(), o.PaymentOrderState)
	}
	return o, nil
}

// ConfirmEnrollmentPayment approves the order behind an enrollment request.
func (m *Manager) ConfirmEnrollmentPayment(ctx context.Context, enrollmentID uuid.UUID, in ApproveInput) (*model.PaymentOrderModel, error) {
	e, err := m.store.GetEnrollment(ctx, enrollmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("enrollment request %s not found", enrollmentID)
	}
	if err != nil {
		return nil, m.wrap("get enrollment request", err)
	}
	return m.ApprovePayment(ctx, e.EnrollmentRequestOrderID, in)
}

/* =========================================================
   helpers
========================================================= */

// wrap keeps domain errors as they are and turns anything else into a
// persistence error.
func (m *Manager) wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		m.log.Warn(op+" interrupted", zap.Error(err))
	} else {
		m.log.Error(op+" failed", zap.Error(err))
	}
	return apperr.Persistence(op+" failed", err)
}

func (m *Manager) publish(ctx context.Context, evts ...events.OrderEvent) {
	if err := m.publisher.Publish(ctx, evts...); err != nil {
		m.log.Warn("publishing order events failed", zap.Int("events", len(evts)), zap.Error(err))
	}
}

func eventFor(typ events.Type, o *model.PaymentOrderModel, at time.Time) events.OrderEvent {
	return events.OrderEvent{
		Event:       typ,
		OrderID:     o.PaymentOrderID.String(),
		OrderNumber: o.PaymentOrderNumber,
		Voucher:     o.VoucherCode(),
		State:       string(o.PaymentOrderState),
		Amount:      o.PaymentOrderAmount.String(),
		Currency:    o.PaymentOrderCurrency,
		Reference:   deref(o.PaymentOrderReference),
		OccurredAt:  at,
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
	}
	span.End()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
