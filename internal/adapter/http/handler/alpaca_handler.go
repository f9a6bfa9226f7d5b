package handler

import (
	"strconv"

	"alpaclub/internal/adapter/http/dto"
	"alpaclub/internal/adapter/http/middleware"
	"alpaclub/internal/core/domain"
	"alpaclub/internal/core/ports"
	"alpaclub/pkg/apperror"
	"alpaclub/pkg/response"

	"github.com/gin-gonic/gin"
)

// AlpacaHandler handles alpaca read, bid, and customization endpoints.
type AlpacaHandler struct {
	alpacaSvc ports.AlpacaService
}

// NewAlpacaHandler creates a new AlpacaHandler.
func NewAlpacaHandler(alpacaSvc ports.AlpacaService) *AlpacaHandler {
	return &AlpacaHandler{alpacaSvc: alpacaSvc}
}

// List handles GET /api/v1/alpacas.
func (h *AlpacaHandler) List(c *gin.Context) {
	alpacas, err := h.alpacaSvc.ListAlpacas(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := make([]dto.AlpacaResponse, 0, len(alpacas))
	for i := range alpacas {
		resp = append(resp, toAlpacaResponse(&alpacas[i]))
	}
	response.OK(c, resp)
}

// Get handles GET /api/v1/alpacas/:id.
func (h *AlpacaHandler) Get(c *gin.Context) {
	id, ok := parseAlpacaID(c)
	if !ok {
		return
	}

	alpaca, err := h.alpacaSvc.GetAlpaca(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toAlpacaResponse(alpaca))
}

// PlaceBid handles POST /api/v1/alpacas/:id/bid.
func (h *AlpacaHandler) PlaceBid(c *gin.Context) {
	id, ok := parseAlpacaID(c)
	if !ok {
		return
	}

	var req dto.BidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.alpacaSvc.PlaceBid(c.Request.Context(), ports.BidRequest{
		AlpacaID:   id,
		Amount:     req.Amount,
		NewOwner:   req.NewOwner,
		NewSecret:  req.NewSecret,
		PaymentRef: req.PaymentRef,
		ClientIP:   c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toAlpacaResponse(result))
}

// Customize handles PATCH /api/v1/alpacas/:id.
func (h *AlpacaHandler) Customize(c *gin.Context) {
	id, ok := parseAlpacaID(c)
	if !ok {
		return
	}

	var req dto.CustomizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	update := ports.CosmeticUpdate{
		Name:            req.Name,
		Color:           req.Color,
		StableColor:     req.StableColor,
		BackgroundImage: req.BackgroundImage,
	}
	if req.Accessory != nil {
		acc := domain.Accessory(*req.Accessory)
		update.Accessory = &acc
	}

	result, err := h.alpacaSvc.Customize(c.Request.Context(), ports.CustomizeRequest{
		AlpacaID: id,
		Secret:   req.Secret,
		AsAdmin:  middleware.IsAdmin(c),
		Update:   update,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toAlpacaResponse(result))
}

// parseAlpacaID reads the :id path parameter. Writes the validation error
// response itself and returns ok=false when the parameter is malformed.
func parseAlpacaID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		response.Error(c, apperror.Validation("alpaca id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// toAlpacaResponse converts domain.Alpaca to DTO. The secret hash stays
// server-side.
func toAlpacaResponse(a *domain.Alpaca) dto.AlpacaResponse {
	history := make([]dto.TransferResponse, 0, len(a.History))
	for _, rec := range a.History {
		history = append(history, dto.TransferResponse{
			ID:            rec.ID.String(),
			OccurredAt:    rec.OccurredAt.Format("2006-01-02T15:04:05Z07:00"),
			PreviousOwner: rec.PreviousOwner,
			NewOwner:      rec.NewOwner,
			Amount:        rec.Amount,
		})
	}

	return dto.AlpacaResponse{
		ID:              a.ID,
		Name:            a.Name,
		Color:           a.Color,
		StableColor:     a.StableColor,
		Accessory:       string(a.Accessory),
		BackgroundImage: a.BackgroundImage,
		CurrentValue:    a.CurrentValue,
		OwnerName:       a.OwnerName,
		LastTransferAt:  a.LastTransferAt.Format("2006-01-02T15:04:05Z07:00"),
		History:         history,
	}
}
