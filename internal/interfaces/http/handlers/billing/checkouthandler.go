package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/docpilot/internal/application/billing/dto"
	"github.com/orris-inc/docpilot/internal/application/billing/usecases"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/logger"
	"github.com/orris-inc/docpilot/internal/shared/utils"
)

type CheckoutHandler struct {
	checkoutUC createCheckoutUseCase
	logger     logger.Interface
}

func NewCheckoutHandler(checkoutUC createCheckoutUseCase, logger logger.Interface) *CheckoutHandler {
	return &CheckoutHandler{checkoutUC: checkoutUC, logger: logger}
}

type CreateCheckoutRequest struct {
	PlanCode       string `json:"plan_code" binding:"required,max=64"`
	Provider       string `json:"provider" binding:"omitempty,max=32"`
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=128"`
	ReturnURL      string `json:"return_url" binding:"omitempty,url,max=512"`
}

// CreateCheckout starts or resumes a checkout for the caller.
// @Summary Create checkout
// @Description Creates a pending order and a provider checkout session. Reusing idempotency_key returns the same order.
// @Tags Checkout
// @Accept json
// @Produce json
// @Security Bearer
// @Param Idempotency-Key header string false "alternative to idempotency_key in the body"
// @Param request body CreateCheckoutRequest true "checkout request"
// @Success 201 {object} utils.APIResponse{data=dto.CheckoutDTO}
// @Success 200 {object} utils.APIResponse{data=dto.CheckoutDTO}
// @Failure 400 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Router /checkout [post]
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	userID, ok := utils.GetUserID(c)
	if !ok {
		utils.ErrorResponseWithError(c, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	var req CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for checkout", "user_id", userID, "error", err)
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("invalid request body", err.Error()))
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	result, err := h.checkoutUC.Execute(c.Request.Context(), usecases.CreateCheckoutCommand{
		UserID:         userID,
		PlanCode:       req.PlanCode,
		Provider:       vo.ParseProvider(req.Provider),
		IdempotencyKey: req.IdempotencyKey,
		ReturnURL:      req.ReturnURL,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	utils.SuccessResponse(c, status, "", toCheckoutDTO(result))
}

func toCheckoutDTO(r *usecases.CheckoutResult) dto.CheckoutDTO {
	return dto.CheckoutDTO{
		OrderID:         r.OrderID,
		ExternalOrderID: r.ExternalOrderID,
		Status:          r.Status.String(),
		AmountCents:     r.Amount.AmountInCents(),
		Amount:          r.Amount.Major().StringFixed(2),
		Currency:        r.Amount.Currency(),
		CheckoutURL:     r.CheckoutURL,
		Reused:          r.Reused,
	}
}
