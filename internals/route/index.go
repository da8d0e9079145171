package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"olimpiada_backend/internals/configs"
	"olimpiada_backend/internals/constants"
	orderController "olimpiada_backend/internals/features/finance/payment_orders/controller"
	convController "olimpiada_backend/internals/features/olympiad/convocatorias/controller"
	authMiddleware "olimpiada_backend/internals/middlewares/auth"
	routeDetails "olimpiada_backend/internals/route/details"
)

var startTime time.Time

type Deps struct {
	DB            *gorm.DB
	Config        configs.Config
	Log           *zap.Logger
	Gatherer      prometheus.Gatherer
	Orders        *orderController.PaymentOrderController
	Convocatorias *convController.ConvocatoriaController
}

func SetupRoutes(app *fiber.App, d Deps) {
	startTime = time.Now()
	log := d.Log.Named("routes")

	log.Info("setting up base routes")
	BaseRoutes(app, d.DB, d.Gatherer, d.Config.Env)

	jwt := authMiddleware.AuthJWT(authMiddleware.AuthJWTOpts{
		Secret:              d.Config.JWTSecret,
		AllowCookieFallback: true,
	})

	// ===================== GROUPS =====================
	public := app.Group("/api/public")

	private := app.Group("/api/u",
		jwt,
		authMiddleware.OnlyRoles(constants.RoleErrorRegistrant("payment orders"), constants.Registrants...),
	)

	admin := app.Group("/api/a",
		jwt,
		authMiddleware.OnlyRoles(constants.RoleErrorAdmin("order administration"), constants.AdminOnly...),
	)

	// ===================== MOUNT ROUTES =====================
	log.Info("mounting olympiad routes")
	routeDetails.OlympiadPublicRoutes(public, d.Convocatorias)

	log.Info("mounting finance routes")
	routeDetails.FinanceUserRoutes(private, d.Orders)
	routeDetails.FinanceAdminRoutes(admin, d.Orders)
}
