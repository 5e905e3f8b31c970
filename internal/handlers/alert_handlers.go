package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pos_ledger_backend/internal/services"
	"pos_ledger_backend/pkg/utils"
)

// AlertHandler holds the alert service.
type AlertHandler struct {
	alertService services.AlertService
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(as services.AlertService) *AlertHandler {
	return &AlertHandler{alertService: as}
}

// GetAlerts lists open, unacknowledged alerts, newest first.
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	var productID *string
	if v := c.Query("product_id"); v != "" {
		productID = &v
	}

	alerts, err := h.alertService.GetAlerts(productID)
	if err != nil {
		utils.LogError(err, "GetAlerts: Error from alertService.GetAlerts")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch alerts.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": alerts, "total": len(alerts)})
}

// EvaluateAlerts re-runs the alert evaluator, for one product or the whole
// catalog, and returns what was created and cleared.
func (h *AlertHandler) EvaluateAlerts(c *gin.Context) {
	productID := c.Query("product_id")

	var err error
	var delta interface{}
	if productID != "" {
		delta, err = h.alertService.Evaluate(productID)
	} else {
		delta, err = h.alertService.EvaluateAll()
	}
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Product not found.", err.Error()))
			return
		}
		utils.LogError(err, "EvaluateAlerts: Error from alertService")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to evaluate alerts.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, delta)
}

// AcknowledgeAlert marks an alert as seen by the current user.
func (h *AlertHandler) AcknowledgeAlert(c *gin.Context) {
	userID := currentUserID(c)
	if userID == nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authentication required.", ""))
		return
	}

	alert, err := h.alertService.Acknowledge(c.Param("id"), *userID)
	if err != nil {
		if errors.Is(err, services.ErrAlertNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Alert not found.", err.Error()))
			return
		}
		utils.LogError(err, "AcknowledgeAlert: Error from alertService.Acknowledge")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to acknowledge alert.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, alert)
}
