package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/services"
	"pos_ledger_backend/pkg/utils"
)

// StockCountHandler holds the stock count service.
type StockCountHandler struct {
	stockCountService services.StockCountService
}

// NewStockCountHandler creates a new StockCountHandler.
func NewStockCountHandler(scs services.StockCountService) *StockCountHandler {
	return &StockCountHandler{stockCountService: scs}
}

// CreateStockCount opens a draft physical count.
func (h *StockCountHandler) CreateStockCount(c *gin.Context) {
	var req services.SubmitStockCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}
	req.CountedBy = currentUserID(c)

	count, err := h.stockCountService.Submit(req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Validation failed: "+err.Error(), err.Error()))
		case errors.Is(err, services.ErrProductNotFound),
			errors.Is(err, services.ErrLocationNotFound),
			errors.Is(err, services.ErrBatchNotFound):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, err.Error(), ""))
		default:
			utils.LogError(err, "CreateStockCount: Error from stockCountService.Submit")
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to create stock count.", "Internal error"))
		}
		return
	}
	c.JSON(http.StatusCreated, count)
}

// GetStockCount fetches one count with its items.
func (h *StockCountHandler) GetStockCount(c *gin.Context) {
	count, err := h.stockCountService.GetStockCount(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrStockCountNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Stock count not found.", err.Error()))
			return
		}
		utils.LogError(err, "GetStockCount: Error from stockCountService.GetStockCount")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch stock count.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, count)
}

// GetStockCounts lists counts, newest first.
func (h *StockCountHandler) GetStockCounts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	var locationID *string
	if v := c.Query("location_id"); v != "" {
		locationID = &v
	}
	var status *models.StockCountStatus
	if v := c.Query("status"); v != "" {
		s := models.StockCountStatus(v)
		if s != models.StockCountDraft && s != models.StockCountCompleted {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Unknown stock count status: "+v, ""))
			return
		}
		status = &s
	}

	counts, totalCount, err := h.stockCountService.ListStockCounts(locationID, status, page, pageSize)
	if err != nil {
		utils.LogError(err, "GetStockCounts: Error from stockCountService.ListStockCounts")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch stock counts.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      counts,
		"total":     totalCount,
		"page":      page,
		"page_size": pageSize,
	})
}

// CompleteStockCount reconciles a draft count: freezes expectations,
// computes variances, and appends the variance movements atomically.
func (h *StockCountHandler) CompleteStockCount(c *gin.Context) {
	count, movements, err := h.stockCountService.Complete(c.Param("id"), currentUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStockCountNotFound):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Stock count not found.", err.Error()))
		case errors.Is(err, services.ErrCountAlreadyCompleted):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Stock count already completed.", err.Error()))
		case errors.Is(err, services.ErrBatchNotFound):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, err.Error(), ""))
		default:
			utils.LogError(err, "CompleteStockCount: Error from stockCountService.Complete")
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to complete stock count.", "Internal error"))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stock_count": count,
		"movements":   movements,
	})
}
