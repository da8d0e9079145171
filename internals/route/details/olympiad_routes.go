package details

import (
	"github.com/gofiber/fiber/v2"

	convController "olimpiada_backend/internals/features/olympiad/convocatorias/controller"
	convRoute "olimpiada_backend/internals/features/olympiad/convocatorias/route"
)

func OlympiadPublicRoutes(r fiber.Router, h *convController.ConvocatoriaController) {
	convRoute.ConvocatoriaPublicRoutes(r, h)
}
