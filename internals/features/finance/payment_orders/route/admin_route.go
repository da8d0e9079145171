package route

import (
	"github.com/gofiber/fiber/v2"

	"olimpiada_backend/internals/features/finance/payment_orders/controller"
)

/*
Admin routes, mounted under /api/a behind the JWT + admin guard.
*/
func PaymentOrderAdminRoutes(r fiber.Router, h *controller.PaymentOrderController) {
	orders := r.Group("/orders")
	orders.Get("/", h.ListOrders)                  // GET   /api/a/orders?state=&from=&to=&page=
	orders.Get("/stats", h.OrderStats)             // GET   /api/a/orders/stats?from=&to=
	orders.Get("/lookup/:code", h.LookupPending)   // GET   /api/a/orders/lookup/ORD-000123
	orders.Patch("/:id/approve", h.ApprovePayment) // PATCH /api/a/orders/:id/approve
	orders.Patch("/:id/reject", h.RejectOrder)     // PATCH /api/a/orders/:id/reject

	r.Put("/enrollments/:id/confirm-payment", h.ConfirmEnrollmentPayment)
	r.Post("/sweeps/expiration", h.TriggerSweep)
}
