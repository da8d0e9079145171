package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	areaModel "olimpiada_backend/internals/features/olympiad/areas/model"
	"olimpiada_backend/internals/features/olympiad/convocatorias/dto"
	"olimpiada_backend/internals/features/olympiad/convocatorias/model"
	helper "olimpiada_backend/internals/helpers"
)

type ConvocatoriaController struct {
	DB  *gorm.DB
	Log *zap.Logger
	Now func() time.Time
}

func NewConvocatoriaController(db *gorm.DB, log *zap.Logger) *ConvocatoriaController {
	return &ConvocatoriaController{DB: db, Log: log.Named("convocatorias"), Now: time.Now}
}

type callArea struct {
	ConvocatoriaID      uuid.UUID `gorm:"column:convocatoria_area_convocatoria_id"`
	areaModel.AreaModel `gorm:"embedded"`
}

// GET /api/public/convocatorias/open
func (h *ConvocatoriaController) ListOpen(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var calls []model.ConvocatoriaModel
	if err := h.DB.WithContext(ctx).
		Scopes(model.OpenAt(h.Now())).
		Order("convocatoria_start_date ASC").
		Find(&calls).Error; err != nil {
		h.Log.Error("list open convocatorias", zap.Error(err))
		return helper.JsonError(c, fiber.StatusInternalServerError, "failed to load open calls")
	}

	byCall := map[uuid.UUID][]areaModel.AreaModel{}
	if len(calls) > 0 {
		ids := make([]uuid.UUID, 0, len(calls))
		for _, cv := range calls {
			ids = append(ids, cv.ConvocatoriaID)
		}
		var rows []callArea
		if err := h.DB.WithContext(ctx).
			Table("areas").
			Select("ca.convocatoria_area_convocatoria_id, areas.*").
			Joins("JOIN convocatoria_areas ca ON ca.convocatoria_area_area_id = areas.area_id").
			Where("ca.convocatoria_area_convocatoria_id IN ? AND areas.area_is_active = ?", ids, true).
			Order("areas.area_name ASC").
			Scan(&rows).Error; err != nil {
			h.Log.Error("list convocatoria areas", zap.Error(err))
			return helper.JsonError(c, fiber.StatusInternalServerError, "failed to load open calls")
		}
		for _, r := range rows {
			byCall[r.ConvocatoriaID] = append(byCall[r.ConvocatoriaID], r.AreaModel)
		}
	}

	out := make([]dto.ConvocatoriaResponse, 0, len(calls))
	for _, cv := range calls {
		out = append(out, dto.NewConvocatoriaResponse(cv, byCall[cv.ConvocatoriaID]))
	}

	c.Set("Cache-Control", "public, max-age=60, stale-while-revalidate=120")
	return helper.JsonOK(c, "ok", out)
}
