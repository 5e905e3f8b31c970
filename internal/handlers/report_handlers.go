package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/services"
	"pos_ledger_backend/pkg/utils"
)

// ReportHandler holds the valuation and aging services.
type ReportHandler struct {
	valuationService services.ValuationService
	agingService     services.AgingService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(vs services.ValuationService, as services.AgingService) *ReportHandler {
	return &ReportHandler{valuationService: vs, agingService: as}
}

// GetValuation prices the stock currently on hand within a scope.
func (h *ReportHandler) GetValuation(c *gin.Context) {
	scope := models.ValuationScope(c.DefaultQuery("scope", string(models.ScopeAll)))

	var productID, locationID *string
	if v := c.Query("product_id"); v != "" {
		productID = &v
	}
	if v := c.Query("location_id"); v != "" {
		locationID = &v
	}

	valuation, err := h.valuationService.Valuate(scope, productID, locationID)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Validation failed: "+err.Error(), err.Error()))
			return
		}
		utils.LogError(err, "GetValuation: Error from valuationService.Valuate")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to compute valuation.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, valuation)
}

// GetAgingReport buckets stocked batches by expiry proximity.
func (h *ReportHandler) GetAgingReport(c *gin.Context) {
	report, err := h.agingService.GetAgingReport()
	if err != nil {
		utils.LogError(err, "GetAgingReport: Error from agingService.GetAgingReport")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to compute aging report.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, report)
}
