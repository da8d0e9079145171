package details

import (
	"github.com/gofiber/fiber/v2"

	orderController "olimpiada_backend/internals/features/finance/payment_orders/controller"
	orderRoute "olimpiada_backend/internals/features/finance/payment_orders/route"
	"olimpiada_backend/internals/middlewares"
)

func FinanceUserRoutes(r fiber.Router, h *orderController.PaymentOrderController) {
	orderRoute.PaymentOrderUserRoutes(r.Group("", middlewares.OrderCreateRateLimiter()), h)
}

func FinanceAdminRoutes(r fiber.Router, h *orderController.PaymentOrderController) {
	orderRoute.PaymentOrderAdminRoutes(r, h)
}
