package dto

import (
	"github.com/google/uuid"

	areaModel "olimpiada_backend/internals/features/olympiad/areas/model"
	"olimpiada_backend/internals/features/olympiad/convocatorias/model"
)

type AreaResponse struct {
	AreaID      uuid.UUID `json:"areaId"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	// Cost is what one selection of this area costs under the call.
	Cost string `json:"cost"`
}

type ConvocatoriaResponse struct {
	ConvocatoriaID uuid.UUID      `json:"convocatoriaId"`
	Name           string         `json:"name"`
	Description    *string        `json:"description"`
	StartDate      string         `json:"startDate"`
	EndDate        string         `json:"endDate"`
	CostPerArea    string         `json:"costPerArea"`
	MaxAreas       int            `json:"maxAreas"`
	Areas          []AreaResponse `json:"areas"`
}

func NewConvocatoriaResponse(c model.ConvocatoriaModel, areas []areaModel.AreaModel) ConvocatoriaResponse {
	out := ConvocatoriaResponse{
		ConvocatoriaID: c.ConvocatoriaID,
		Name:           c.ConvocatoriaName,
		Description:    c.ConvocatoriaDescription,
		StartDate:      c.ConvocatoriaStartDate.Format("2006-01-02"),
		EndDate:        c.ConvocatoriaEndDate.Format("2006-01-02"),
		CostPerArea:    c.ConvocatoriaCostPerArea.String(),
		MaxAreas:       c.ConvocatoriaMaxAreas,
		Areas:          make([]AreaResponse, 0, len(areas)),
	}
	for _, a := range areas {
		cost := c.ConvocatoriaCostPerArea
		if a.AreaCost != nil {
			cost = *a.AreaCost
		}
		out.Areas = append(out.Areas, AreaResponse{
			AreaID:      a.AreaID,
			Name:        a.AreaName,
			Description: a.AreaDescription,
			Cost:        cost.String(),
		})
	}
	return out
}
