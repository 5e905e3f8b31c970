package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/services"
	"pos_ledger_backend/pkg/utils"
)

// MovementHandler holds the ledger service.
type MovementHandler struct {
	ledgerService services.LedgerService
}

// NewMovementHandler creates a new MovementHandler.
func NewMovementHandler(ls services.LedgerService) *MovementHandler {
	return &MovementHandler{ledgerService: ls}
}

// RecordMovement appends one stock movement to the ledger. Replays of a
// previously used idempotency key return 200 with the original movement.
func (h *MovementHandler) RecordMovement(c *gin.Context) {
	var req services.RecordMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}
	req.ActorID = currentUserID(c)

	movement, replayed, err := h.ledgerService.RecordMovement(req)
	if err != nil {
		h.respondMovementError(c, err, "RecordMovement")
		return
	}
	if replayed {
		c.JSON(http.StatusOK, movement)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

// RecordTransfer moves stock between locations as an atomic pair.
func (h *MovementHandler) RecordTransfer(c *gin.Context) {
	var req services.RecordTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}
	req.ActorID = currentUserID(c)

	pair, replayed, err := h.ledgerService.RecordTransfer(req)
	if err != nil {
		h.respondMovementError(c, err, "RecordTransfer")
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"movements": pair})
}

func (h *MovementHandler) respondMovementError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Validation failed: "+err.Error(), err.Error()))
	case errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrLocationNotFound),
		errors.Is(err, services.ErrBatchNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, err.Error(), ""))
	case errors.Is(err, services.ErrInsufficientStock):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeInsufficientStock, err.Error(), ""))
	case errors.Is(err, services.ErrIdempotencyConflict):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, err.Error(), ""))
	default:
		utils.LogError(err, op+": Error from ledgerService")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to record movement.", "Internal error"))
	}
}

// GetMovement fetches one movement by id.
func (h *MovementHandler) GetMovement(c *gin.Context) {
	movement, err := h.ledgerService.GetMovement(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrMovementNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Movement not found.", err.Error()))
			return
		}
		utils.LogError(err, "GetMovement: Error from ledgerService.GetMovement")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch movement.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, movement)
}

// GetMovements fetches movement history, newest first, with filters.
func (h *MovementHandler) GetMovements(c *gin.Context) {
	filters, ok := parseMovementFilters(c)
	if !ok {
		return
	}

	movements, totalCount, err := h.ledgerService.GetMovementHistory(filters)
	if err != nil {
		utils.LogError(err, "GetMovements: Error from ledgerService.GetMovementHistory")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch movements.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      movements,
		"total":     totalCount,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

func parseMovementFilters(c *gin.Context) (models.MovementFilters, bool) {
	filters := models.MovementFilters{}
	filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filters.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 50
	}

	if v := c.Query("product_id"); v != "" {
		filters.ProductID = &v
	}
	if v := c.Query("location_id"); v != "" {
		filters.LocationID = &v
	}
	if v := c.Query("batch_id"); v != "" {
		filters.BatchID = &v
	}
	if v := c.Query("movement_type"); v != "" {
		mt := models.MovementType(v)
		if !mt.IsValid() {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Unknown movement type: "+v, ""))
			return filters, false
		}
		filters.MovementType = &mt
	}
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid start_date, expected RFC3339.", err.Error()))
			return filters, false
		}
		filters.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid end_date, expected RFC3339.", err.Error()))
			return filters, false
		}
		filters.EndDate = &t
	}
	return filters, true
}
