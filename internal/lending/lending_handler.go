package lending

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	custom_error "equiploan/pkg/errors"
	"equiploan/pkg/metadata"
	"equiploan/pkg/models"
	"equiploan/pkg/roles"
	"equiploan/pkg/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Service interface {
	SubmitBorrowRequest(ctx context.Context, cmd SubmitBorrowRequestCommand) (int, error)
	Approve(ctx context.Context, id, approverID int, borrowDate *time.Time) (*models.BorrowRequest, error)
	Reject(ctx context.Context, id, rejectedByID int, reason string) (*models.BorrowRequest, error)
	ReturnRequest(ctx context.Context, cmd ReturnCommand) (*models.BorrowRequest, error)
	GetRequest(ctx context.Context, id int) (*models.BorrowRequest, error)
	ListRequests(ctx context.Context, filter models.BorrowRequestFilter) ([]models.BorrowRequest, error)
	ListExpiredPending(ctx context.Context, now time.Time) ([]models.ExpiredCandidate, error)
	SweepExpired(ctx context.Context, now time.Time, operatorID int) (*models.SweepResult, error)
}

type LendingHandler struct {
	Service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *LendingHandler {
	return &LendingHandler{Service: service, logger: logger}
}

// RegisterRoutes expects router to be behind JWTMiddleware.
func (h *LendingHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/borrow-requests", h.SubmitBorrowRequest)
	router.GET("/borrow-requests", h.ListRequests)
	router.GET("/borrow-requests/:id", h.GetRequest)

	admin := router.Group("", security.Authorize(roles.Admin))
	admin.PATCH("/borrow-requests/:id/approve", h.Approve)
	admin.PATCH("/borrow-requests/:id/reject", h.Reject)
	admin.PATCH("/borrow-requests/:id/return", h.ReturnRequest)
	admin.GET("/borrow-requests/expired", h.ListExpiredPending)
	admin.POST("/borrow-requests/expired/sweep", h.SweepExpired)
}

type submitRequest struct {
	BorrowerType  string        `json:"borrower_type" binding:"required"`
	ExternalName  string        `json:"external_name"`
	ExternalDept  string        `json:"external_dept"`
	ExternalPhone string        `json:"external_phone"`
	Items         []ItemRequest `json:"items" binding:"required,dive"`
	ReturnDue     time.Time     `json:"return_due" binding:"required"`
	Reason        string        `json:"reason"`
}

type approveRequest struct {
	BorrowDate *time.Time `json:"borrow_date"`
}

type rejectRequest struct {
	RejectReason string `json:"reject_reason"`
}

type returnRequest struct {
	Condition        string     `json:"condition" binding:"required"`
	Notes            string     `json:"notes"`
	ActualReturnDate *time.Time `json:"actual_return_date"`
}

func (h *LendingHandler) SubmitBorrowRequest(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	borrowerType, err := metadata.NewBorrowerType(req.BorrowerType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	cmd := SubmitBorrowRequestCommand{
		BorrowerType:  borrowerType,
		SubmittedByID: principal.UserID,
		Items:         req.Items,
		ReturnDue:     req.ReturnDue,
		Reason:        req.Reason,
	}
	if borrowerType == metadata.BorrowerInternal {
		cmd.RequesterID = principal.UserID
	} else {
		cmd.ExternalName = req.ExternalName
		cmd.ExternalDept = req.ExternalDept
		cmd.ExternalPhone = req.ExternalPhone
	}

	id, err := h.Service.SubmitBorrowRequest(c.Request.Context(), cmd)
	if err != nil {
		h.respondError(c, "Unable to submit borrow request", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *LendingHandler) Approve(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := requestID(c)
	if !ok {
		return
	}

	// The body is optional; an empty one approves with borrow_date = now.
	var req approveRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}
	}

	updated, err := h.Service.Approve(c.Request.Context(), id, principal.UserID, req.BorrowDate)
	if err != nil {
		h.respondError(c, "Unable to approve borrow request", err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *LendingHandler) Reject(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := requestID(c)
	if !ok {
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	updated, err := h.Service.Reject(c.Request.Context(), id, principal.UserID, req.RejectReason)
	if err != nil {
		h.respondError(c, "Unable to reject borrow request", err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *LendingHandler) ReturnRequest(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := requestID(c)
	if !ok {
		return
	}

	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	updated, err := h.Service.ReturnRequest(c.Request.Context(), ReturnCommand{
		RequestID:        id,
		ReceivedByID:     principal.UserID,
		Condition:        req.Condition,
		Notes:            req.Notes,
		ActualReturnDate: req.ActualReturnDate,
	})
	if err != nil {
		h.respondError(c, "Unable to return borrow request", err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *LendingHandler) GetRequest(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := requestID(c)
	if !ok {
		return
	}

	req, err := h.Service.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Unable to get borrow request", err)
		return
	}

	if !principal.IsAdmin() && !req.IsVisibleTo(principal.UserID) {
		h.respondError(c, "Unable to get borrow request", &custom_error.ForbiddenError{Operation: "view borrow request"})
		return
	}

	c.JSON(http.StatusOK, req)
}

// ListRequests returns every request to admins. Staff get the requests they
// requested or submitted.
func (h *LendingHandler) ListRequests(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var filter models.BorrowRequestFilter
	if raw := c.Query("status"); raw != "" {
		status, err := metadata.NewRequestStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("borrower_type"); raw != "" {
		borrowerType, err := metadata.NewBorrowerType(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}
		filter.BorrowerType = &borrowerType
	}
	if !principal.IsAdmin() {
		userID := principal.UserID
		filter.VisibleTo = &userID
	}

	requests, err := h.Service.ListRequests(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "Unable to list borrow requests", err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

func (h *LendingHandler) ListExpiredPending(c *gin.Context) {
	candidates, err := h.Service.ListExpiredPending(c.Request.Context(), time.Now())
	if err != nil {
		h.respondError(c, "Unable to list expired requests", err)
		return
	}

	c.JSON(http.StatusOK, candidates)
}

func (h *LendingHandler) SweepExpired(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	result, err := h.Service.SweepExpired(c.Request.Context(), time.Now(), principal.UserID)
	if err != nil {
		h.logger.Error("Expiry sweep failed", zap.Error(err))
		if result != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Expiry sweep finished with errors", "details": err.Error(), "result": result})
			return
		}
		h.respondError(c, "Unable to run expiry sweep", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *LendingHandler) principal(c *gin.Context) (security.Principal, bool) {
	principal, err := security.CurrentPrincipal(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "details": err.Error()})
		return security.Principal{}, false
	}
	return principal, true
}

func requestID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Borrow request ID is required"})
		return 0, false
	}
	return id, true
}

// respondError maps the lending error taxonomy onto HTTP statuses.
func (h *LendingHandler) respondError(c *gin.Context, message string, err error) {
	var (
		validationErr *custom_error.ValidationError
		notFoundErr   *custom_error.NotFoundError
		transitionErr *custom_error.InvalidStateTransitionError
		conflictErr   *custom_error.ConflictingReservationError
		forbiddenErr  *custom_error.ForbiddenError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": message, "details": err.Error(), "field": validationErr.Field, "items": validationErr.Items})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, gin.H{"error": message, "details": err.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": message, "details": err.Error(), "ids": notFoundErr.IDs})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": message, "details": err.Error(), "status": transitionErr.From})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": message, "details": err.Error(), "items": conflictErr.Items})
	default:
		h.logger.Error(message, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": message, "details": err.Error()})
	}
}
