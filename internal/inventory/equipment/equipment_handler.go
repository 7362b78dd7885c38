package equipment

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	custom_error "equiploan/pkg/errors"
	"equiploan/pkg/metadata"
	"equiploan/pkg/models"
	"equiploan/pkg/roles"
	"equiploan/pkg/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Service interface {
	GetEquipment(ctx context.Context, number int) (*models.Equipment, error)
	ListEquipment(ctx context.Context, filter models.EquipmentFilter) ([]models.Equipment, error)
	EquipmentHistory(ctx context.Context, number int) ([]models.AuditLog, error)
}

type EquipmentHandler struct {
	Service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *EquipmentHandler {
	return &EquipmentHandler{Service: service, logger: logger}
}

func (h *EquipmentHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/equipment", h.ListEquipment)
	router.GET("/equipment/:number", h.GetEquipment)
	router.GET("/equipment/:number/history", security.Authorize(roles.Admin), h.GetHistory)
}

func (h *EquipmentHandler) ListEquipment(c *gin.Context) {
	var filter models.EquipmentFilter

	if raw := c.Query("status"); raw != "" {
		status, err := metadata.NewEquipmentStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("category_id"); raw != "" {
		categoryID, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
			return
		}
		filter.CategoryID = &categoryID
	}
	if raw := c.Query("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid available flag"})
			return
		}
		filter.Available = available
	}

	equipment, err := h.Service.ListEquipment(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Unable to list equipment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to list equipment", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, equipment)
}

func (h *EquipmentHandler) GetEquipment(c *gin.Context) {
	number, ok := equipmentNumber(c)
	if !ok {
		return
	}

	equipment, err := h.Service.GetEquipment(c.Request.Context(), number)
	if err != nil {
		h.respondError(c, "Unable to get equipment", err)
		return
	}

	c.JSON(http.StatusOK, equipment)
}

func (h *EquipmentHandler) GetHistory(c *gin.Context) {
	number, ok := equipmentNumber(c)
	if !ok {
		return
	}

	history, err := h.Service.EquipmentHistory(c.Request.Context(), number)
	if err != nil {
		h.respondError(c, "Unable to get equipment history", err)
		return
	}

	c.JSON(http.StatusOK, history)
}

func equipmentNumber(c *gin.Context) (int, bool) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Equipment number is required"})
		return 0, false
	}
	return number, true
}

func (h *EquipmentHandler) respondError(c *gin.Context, message string, err error) {
	var notFoundErr *custom_error.NotFoundError
	if errors.As(err, &notFoundErr) {
		c.JSON(http.StatusNotFound, gin.H{"error": message, "details": err.Error()})
		return
	}

	h.logger.Error(message, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": message, "details": err.Error()})
}
