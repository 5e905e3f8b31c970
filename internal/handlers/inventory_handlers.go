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

// InventoryHandler holds the projection service.
type InventoryHandler struct {
	projectionService services.ProjectionService
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(ps services.ProjectionService) *InventoryHandler {
	return &InventoryHandler{projectionService: ps}
}

// GetInventory lists projected quantities with filters.
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	filters := models.InventoryFilters{}
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
	if v := c.Query("search"); v != "" {
		filters.Search = &v
	}
	filters.LowStock = c.Query("low_stock") == "true"
	filters.OutOfStock = c.Query("out_of_stock") == "true"
	filters.Expired = c.Query("expired") == "true"
	filters.ExpiringSoon = c.Query("expiring_soon") == "true"

	items, totalCount, err := h.projectionService.GetInventory(filters)
	if err != nil {
		utils.LogError(err, "GetInventory: Error from projectionService.GetInventory")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch inventory.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      items,
		"total":     totalCount,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// GetInventoryItem projects the current quantities for one product at one
// location, replaying any movements past the stored checkpoint.
func (h *InventoryHandler) GetInventoryItem(c *gin.Context) {
	productID := c.Param("product_id")
	locationID := c.DefaultQuery("location_id", models.DefaultLocationID)

	item, err := h.projectionService.Project(productID, locationID)
	if err != nil {
		utils.LogError(err, "GetInventoryItem: Error from projectionService.Project")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to project inventory.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, item)
}

type adjustReservedRequest struct {
	LocationID string `json:"location_id"`
	Delta      int64  `json:"delta" binding:"required"`
}

// AdjustReserved moves the reservation counter for a key. Positive delta
// holds stock for a pending order, negative releases it.
func (h *InventoryHandler) AdjustReserved(c *gin.Context) {
	var req adjustReservedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}
	if req.LocationID == "" {
		req.LocationID = models.DefaultLocationID
	}

	item, err := h.projectionService.AdjustReserved(c.Param("product_id"), req.LocationID, req.Delta)
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Product not found.", err.Error()))
			return
		}
		utils.LogError(err, "AdjustReserved: Error from projectionService.AdjustReserved")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to adjust reservation.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, item)
}

// RebuildProjection discards the checkpoint for a key and replays the full
// movement log, reporting any drift. Admin only.
func (h *InventoryHandler) RebuildProjection(c *gin.Context) {
	productID := c.Param("product_id")
	locationID := c.DefaultQuery("location_id", models.DefaultLocationID)

	result, err := h.projectionService.Rebuild(productID, locationID)
	if err != nil {
		utils.LogError(err, "RebuildProjection: Error from projectionService.Rebuild")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to rebuild projection.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, result)
}
