package route

import (
	"github.com/gofiber/fiber/v2"

	"olimpiada_backend/internals/features/olympiad/convocatorias/controller"
)

// Mounted under /api/public, no auth.
func ConvocatoriaPublicRoutes(r fiber.Router, h *controller.ConvocatoriaController) {
	r.Get("/convocatorias/open", h.ListOpen) // GET /api/public/convocatorias/open
}
