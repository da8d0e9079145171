package controller

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"olimpiada_backend/internals/features/finance/payment_orders/dto"
	"olimpiada_backend/internals/features/finance/payment_orders/model"
	"olimpiada_backend/internals/features/finance/payment_orders/scheduler"
	"olimpiada_backend/internals/features/finance/payment_orders/service"
	helper "olimpiada_backend/internals/helpers"
	helperAuth "olimpiada_backend/internals/helpers/auth"
	"olimpiada_backend/internals/middlewares"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*model.PaymentOrderModel, error)
	ApprovePayment(ctx context.Context, orderID uuid.UUID, in service.ApproveInput) (*model.PaymentOrderModel, error)
	RejectOrder(ctx context.Context, orderID uuid.UUID, in service.RejectInput) (*model.PaymentOrderModel, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*model.PaymentOrderModel, error)
	ListOrders(ctx context.Context, f service.ListFilter) ([]model.PaymentOrderModel, int64, error)
	OrderStats(ctx context.Context, from, to *time.Time) (*service.OrderStats, error)
	FindPendingByCode(ctx context.Context, code string) (*model.PaymentOrderModel, error)
	ConfirmEnrollmentPayment(ctx context.Context, enrollmentID uuid.UUID, in service.ApproveInput) (*model.PaymentOrderModel, error)
}

type SweepRunner interface {
	Run(ctx context.Context) (scheduler.SweepResult, error)
}

// DefaultManualSweepTimeout stays under the server's 30s write timeout.
const DefaultManualSweepTimeout = 25 * time.Second

type PaymentOrderController struct {
	Orders   OrderService
	Sweep    SweepRunner
	Validate *validator.Validate
	Log      *zap.Logger

	// SweepTimeout bounds a sweep started over HTTP; the run rolls back when it fires.
	SweepTimeout time.Duration
}

func NewPaymentOrderController(orders OrderService, sweep SweepRunner, log *zap.Logger) *PaymentOrderController {
	return &PaymentOrderController{
		Orders:   orders,
		Sweep:    sweep,
		Validate: helper.NewValidator(),
		Log:      log.Named("payment_orders"),

		SweepTimeout: DefaultManualSweepTimeout,
	}
}

// POST /api/u/orders
func (h *PaymentOrderController) CreateOrder(c *fiber.Ctx) error {
	userID, err := helperAuth.GetUserIDFromToken(c)
	if err != nil {
		return helper.JsonAppError(c, err)
	}

	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.Validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationFields(err))
	}
	// only admins may open orders on someone else's account
	if req.AccountID != userID && !helperAuth.IsAdmin(c) {
		return helper.JsonError(c, fiber.StatusForbidden, "accountId does not match the signed-in user")
	}

	o, err := h.Orders.CreateOrder(c.UserContext(), req.ToInput())
	if err != nil {
		return helper.JsonAppError(c, err)
	}
	return helper.JsonCreated(c, "payment order created", dto.NewCreateOrderResponse(o))
}

// GET /api/u/orders/:id
func (h *PaymentOrderController) GetOrder(c *fiber.Ctx) error {
	userID, err := helperAuth.GetUserIDFromToken(c)
	if err != nil {
		return helper.JsonAppError(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return helper.JsonAppError(c, err)
	}

	o, err := h.Orders.GetOrder(c.UserContext(), id)
	if err != nil {
		return helper.JsonAppError(c, err)
	}
	if o.PaymentOrderRequesterID != userID && !helperAuth.IsAdmin(c) {
		// same answer as a missing order so foreign ids stay hidden
		return helper.JsonError(c, fiber.StatusNotFound, "order not found")
	}
	return helper.JsonOK(c, "ok", dto.NewOrderResponse(o))
}

// GET /api/a/orders?state=&from=&to=&page=&per_page=
func (h *PaymentOrderController) ListOrders(c *fiber.Ctx) error {
	var q dto.ListOrdersQuery
	if err := c.QueryParser(&q); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid query")
	}
	if err := h.Validate.Struct(q); err != nil {
		return helper.JsonValidationError(c, helper.ValidationFields(err))
	}
	p := helper.ResolvePaging(c, 20, 100)

	rows, total, err := h.Orders.ListOrders(c.UserContext(), q.ToFilter(p.Page, p.PerPage))
	if err != nil {
		return helper.JsonAppError(c, err)
	}
	return helper.JsonList(c, "ok", dto.NewOrderResponses(rows),
		helper.BuildPaginationFromPage(total, p.Page, p.PerPage, len(rows)))
}

// GET /api/a/orders/stats?from=&to=
func (h *PaymentOrderController) OrderStats(c *fiber.Ctx) error {
	var q dto.OrderStatsQuery
	if err := c.QueryParser(&q); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid query")
	}
	if err := h.Validate.Struct(q); err != nil {
		return helper.JsonValidationError(c, helper.ValidationFields(err))
	}

	from, to := q.Range()
	stats, err := h.Orders.OrderStats(c.UserContext(), from, to)
	if err != nil {
		return helper.JsonAppError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.NewOrderStatsResponse(q, stats))
}

// GET /api/a/orders/lookup/:code
func (h *PaymentOrderController) LookupPending(c *fiber.Ctx) error {
	o, err := h.Orders.FindPendingByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return helper.JsonAppError(c, err)
	}
	return helper.JsonOK(c, "order awaiting payment", dto.NewOrderResponse(o))
}

// PATCH /api/a/orders/:id/approve
func (h *PaymentOrderController) ApprovePayment(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return helper.JsonAppError(c, err)
	}
	var req dto.ApproveOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
	}
	req.Normalize()
	if err := h.Validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationFields(err))
	}

	o, err := h.Orders.ApprovePayment(c.UserContext(), id, req.ToInput(actor(c)))
	if err != nil {
		return helper.JsonAppError(c, err)
	}
	h.Log.Info("payment approved",
		zap.String("order_id", id.String()),
		zap.String("voucher", o.VoucherCode()),
		zap.String("request_id", middlewares.RequestID(c)))
	return helper.JsonUpdated(c, "payment approved", dto.NewOrderResponse(o))
}

// PATCH /api/a/orders/:id/reject
func (h *PaymentOrderController) RejectOrder(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return helper.JsonAppError(c, err)
	}
	var req dto.RejectOrderRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}
	req.Normalize()
	if err := h.Validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationFields(err))
	}

	o, err := h.Orders.RejectOrder(c.UserContext(), id, service.RejectInput{Observations: req.Observations, ActorID: actor(c)})
	if err != nil {
		return helper.JsonAppError(c, err)
	}
	return helper.JsonUpdated(c, "order rejected", dto.NewOrderResponse(o))
}

// PUT /api/a/enrollments/:id/confirm-payment
func (h *PaymentOrderController) ConfirmEnrollmentPayment(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return helper.JsonAppError(c, err)
	}
	var req dto.ConfirmPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
	}
	approve := dto.ApproveOrderRequest{PaymentReference: req.PaymentReference}
	approve.Normalize()
	if err := h.Validate.Struct(approve); err != nil {
		return helper.JsonValidationError(c, helper.ValidationFields(err))
	}

	o, err := h.Orders.ConfirmEnrollmentPayment(c.UserContext(), id, approve.ToInput(actor(c)))
	if err != nil {
		return helper.JsonAppError(c, err)
	}
	return helper.JsonUpdated(c, "enrollment payment confirmed", dto.NewOrderResponse(o))
}

// POST /api/a/sweeps/expiration
func (h *PaymentOrderController) TriggerSweep(c *fiber.Ctx) error {
	// detached from the short request timeout, but must answer before the write deadline
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.UserContext()), h.SweepTimeout)
	defer cancel()

	res, err := h.Sweep.Run(ctx)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil) {
		h.Log.Warn("manual sweep timed out", zap.Duration("timeout", h.SweepTimeout), zap.String("request_id", middlewares.RequestID(c)))
		return helper.JsonError(c, fiber.StatusGatewayTimeout, "expiration sweep timed out, no order was changed")
	}
	if err != nil {
		h.Log.Error("manual sweep failed", zap.String("request_id", middlewares.RequestID(c)), zap.Error(err))
		return helper.JsonError(c, fiber.StatusInternalServerError, "expiration sweep failed")
	}
	msg := "expiration sweep finished"
	if res.Skipped {
		msg = "expiration sweep already running, skipped"
	}
	return helper.JsonOK(c, msg, res)
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "id is not a valid uuid")
	}
	return id, nil
}

func actor(c *fiber.Ctx) *uuid.UUID {
	id, err := helperAuth.GetUserIDFromToken(c)
	if err != nil {
		return nil
	}
	return &id
}
