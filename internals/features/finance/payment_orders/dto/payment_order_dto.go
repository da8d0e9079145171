package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"olimpiada_backend/internals/features/finance/payment_orders/model"
	"olimpiada_backend/internals/features/finance/payment_orders/service"
)

/* =========================================================
   REQUESTS
   ========================================================= */

type CreateOrderRequest struct {
	AccountID      uuid.UUID   `json:"accountId" validate:"required"`
	StudentID      uuid.UUID   `json:"studentId" validate:"required"`
	ConvocatoriaID *uuid.UUID  `json:"convocatoriaId"`
	AreaIDs        []uuid.UUID `json:"areaIds" validate:"required,min=1,dive,required"`
}

func (r CreateOrderRequest) ToInput() service.CreateOrderInput {
	return service.CreateOrderInput{
		RequesterID:    r.AccountID,
		StudentID:      r.StudentID,
		ConvocatoriaID: r.ConvocatoriaID,
		AreaIDs:        r.AreaIDs,
	}
}

type ApproveOrderRequest struct {
	PaymentReference string  `json:"paymentReference" validate:"required,max=50"`
	Observations     *string `json:"observations" validate:"omitempty,max=500"`
}

func (r *ApproveOrderRequest) Normalize() {
	r.PaymentReference = strings.TrimSpace(r.PaymentReference)
	r.Observations = trimPtr(r.Observations)
}

func (r ApproveOrderRequest) ToInput(actor *uuid.UUID) service.ApproveInput {
	return service.ApproveInput{Reference: r.PaymentReference, Observations: r.Observations, ActorID: actor}
}

type RejectOrderRequest struct {
	Observations *string `json:"observations" validate:"omitempty,max=500"`
}

func (r *RejectOrderRequest) Normalize() {
	r.Observations = trimPtr(r.Observations)
}

type ConfirmPaymentRequest struct {
	PaymentReference string `json:"paymentReference" validate:"required,max=50"`
}

// ListOrdersQuery dates are calendar days; `to` includes the whole day.
type ListOrdersQuery struct {
	State string `json:"state" query:"state" validate:"omitempty,oneof=pending paid cancelled expired"`
	From  string `json:"from" query:"from" validate:"omitempty,datetime=2006-01-02"`
	To    string `json:"to" query:"to" validate:"omitempty,datetime=2006-01-02"`
}

func (q ListOrdersQuery) ToFilter(page, perPage int) service.ListFilter {
	f := service.ListFilter{Page: page, PerPage: perPage}
	if q.State != "" {
		st := model.OrderState(q.State)
		f.State = &st
	}
	f.From, f.To = dayRange(q.From, q.To)
	return f
}

// dayRange turns calendar days into [from, to+1d).
func dayRange(from, to string) (*time.Time, *time.Time) {
	var start, end *time.Time
	if t, err := time.Parse("2006-01-02", from); err == nil {
		start = &t
	}
	if t, err := time.Parse("2006-01-02", to); err == nil {
		next := t.AddDate(0, 0, 1)
		end = &next
	}
	return start, end
}

type OrderStatsQuery struct {
	From string `json:"from" query:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" query:"to" validate:"omitempty,datetime=2006-01-02"`
}

func (q OrderStatsQuery) Range() (from, to *time.Time) {
	return dayRange(q.From, q.To)
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

/* =========================================================
   RESPONSES
   ========================================================= */

// CreateOrderResponse.Reference is the voucher code the payer quotes at the bank.
type CreateOrderResponse struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber int64     `json:"orderNumber"`
	Reference   string    `json:"reference"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func NewCreateOrderResponse(o *model.PaymentOrderModel) CreateOrderResponse {
	return CreateOrderResponse{
		OrderID:     o.PaymentOrderID,
		OrderNumber: o.PaymentOrderNumber,
		Reference:   o.VoucherCode(),
		Amount:      o.PaymentOrderAmount.String(),
		Currency:    o.PaymentOrderCurrency,
		ExpiresAt:   o.PaymentOrderExpiresAt,
	}
}

type AreaSelectionResponse struct {
	AreaID   uuid.UUID `json:"areaId"`
	AreaName string    `json:"areaName"`
	Cost     string    `json:"cost"`
}

type EnrollmentResponse struct {
	EnrollmentID   uuid.UUID               `json:"enrollmentId"`
	StudentID      uuid.UUID               `json:"studentId"`
	ConvocatoriaID uuid.UUID               `json:"convocatoriaId"`
	State          model.EnrollmentState   `json:"state"`
	RequestedAt    time.Time               `json:"requestedAt"`
	Areas          []AreaSelectionResponse `json:"areas"`
}

type OrderResponse struct {
	OrderID          uuid.UUID                 `json:"orderId"`
	OrderNumber      int64                     `json:"orderNumber"`
	VoucherCode      string                    `json:"voucherCode"`
	RequesterID      uuid.UUID                 `json:"requesterId"`
	ConvocatoriaID   uuid.UUID                 `json:"convocatoriaId"`
	Amount           string                    `json:"amount"`
	Currency         string                    `json:"currency"`
	State            model.OrderState          `json:"state"`
	PaymentReference *string                   `json:"paymentReference"`
	PaidAt           *time.Time                `json:"paidAt"`
	ExpiresAt        time.Time                 `json:"expiresAt"`
	Observations     *string                   `json:"observations"`
	History          []model.OrderHistoryEntry `json:"history"`
	CreatedAt        time.Time                 `json:"createdAt"`
	UpdatedAt        time.Time                 `json:"updatedAt"`
	Enrollments      []EnrollmentResponse      `json:"enrollments"`
}

func NewOrderResponse(o *model.PaymentOrderModel) OrderResponse {
	out := OrderResponse{
		OrderID:          o.PaymentOrderID,
		OrderNumber:      o.PaymentOrderNumber,
		VoucherCode:      o.VoucherCode(),
		RequesterID:      o.PaymentOrderRequesterID,
		ConvocatoriaID:   o.PaymentOrderConvocatoriaID,
		Amount:           o.PaymentOrderAmount.String(),
		Currency:         o.PaymentOrderCurrency,
		State:            o.PaymentOrderState,
		PaymentReference: o.PaymentOrderReference,
		PaidAt:           o.PaymentOrderPaidAt,
		ExpiresAt:        o.PaymentOrderExpiresAt,
		Observations:     o.PaymentOrderObservations,
		History:          []model.OrderHistoryEntry(o.PaymentOrderHistory),
		CreatedAt:        o.PaymentOrderCreatedAt,
		UpdatedAt:        o.PaymentOrderUpdatedAt,
		Enrollments:      make([]EnrollmentResponse, 0, len(o.Enrollments)),
	}
	if out.History == nil {
		out.History = []model.OrderHistoryEntry{}
	}
	for _, e := range o.Enrollments {
		er := EnrollmentResponse{
			EnrollmentID:   e.EnrollmentRequestID,
			StudentID:      e.EnrollmentRequestStudentID,
			ConvocatoriaID: e.EnrollmentRequestConvocatoriaID,
			State:          e.EnrollmentRequestState,
			RequestedAt:    e.EnrollmentRequestRequestedAt,
			Areas:          make([]AreaSelectionResponse, 0, len(e.Selections)),
		}
		for _, s := range e.Selections {
			er.Areas = append(er.Areas, AreaSelectionResponse{
				AreaID:   s.AreaSelectionAreaID,
				AreaName: s.AreaSelectionAreaName,
				Cost:     s.AreaSelectionCostSnapshot.String(),
			})
		}
		out.Enrollments = append(out.Enrollments, er)
	}
	return out
}

func NewOrderResponses(rows []model.PaymentOrderModel) []OrderResponse {
	out := make([]OrderResponse, 0, len(rows))
	for i := range rows {
		out = append(out, NewOrderResponse(&rows[i]))
	}
	return out
}

type AreaDemandResponse struct {
	AreaID     uuid.UUID `json:"areaId"`
	AreaName   string    `json:"areaName"`
	Selections int64     `json:"selections"`
}

type OrderStatsResponse struct {
	From        string                     `json:"from,omitempty"`
	To          string                     `json:"to,omitempty"`
	TotalOrders int64                      `json:"totalOrders"`
	Orders      map[model.OrderState]int64 `json:"orders"`
	PaidAmount  string                     `json:"paidAmount"`
	Currency    string                     `json:"currency"`
	TopAreas    []AreaDemandResponse       `json:"topAreas"`
}

func NewOrderStatsResponse(q OrderStatsQuery, s *service.OrderStats) OrderStatsResponse {
	out := OrderStatsResponse{
		From:        q.From,
		To:          q.To,
		TotalOrders: s.Total,
		Orders:      s.Orders,
		PaidAmount:  s.PaidAmount.String(),
		Currency:    s.Currency,
		TopAreas:    make([]AreaDemandResponse, 0, len(s.TopAreas)),
	}
	for _, a := range s.TopAreas {
		out.TopAreas = append(out.TopAreas, AreaDemandResponse{AreaID: a.AreaID, AreaName: a.AreaName, Selections: a.Selections})
	}
	return out
}
