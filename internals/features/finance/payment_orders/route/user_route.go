package route

import (
	"github.com/gofiber/fiber/v2"

	"olimpiada_backend/internals/features/finance/payment_orders/controller"
)

/*
User routes, mounted under /api/u behind the JWT + registrant guard.
*/
func PaymentOrderUserRoutes(r fiber.Router, h *controller.PaymentOrderController) {
	orders := r.Group("/orders")
	orders.Post("/", h.CreateOrder) // POST /api/u/orders
	orders.Get("/:id", h.GetOrder)  // GET  /api/u/orders/:id (owner or admin)
}
