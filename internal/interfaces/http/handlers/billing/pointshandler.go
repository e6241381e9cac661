package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/docpilot/internal/application/billing/dto"
	"github.com/orris-inc/docpilot/internal/application/billing/usecases"
	"github.com/orris-inc/docpilot/internal/shared/authorization"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/logger"
	"github.com/orris-inc/docpilot/internal/shared/utils"
)

type PointsHandler struct {
	balanceUC getPointBalanceUseCase
	flowsUC   listPointFlowsUseCase
	consumeUC consumePointsUseCase
	logger    logger.Interface
}

func NewPointsHandler(
	balanceUC getPointBalanceUseCase,
	flowsUC listPointFlowsUseCase,
	consumeUC consumePointsUseCase,
	logger logger.Interface,
) *PointsHandler {
	return &PointsHandler{
		balanceUC: balanceUC,
		flowsUC:   flowsUC,
		consumeUC: consumeUC,
		logger:    logger,
	}
}

// GetBalance returns the caller's point balance.
// @Summary Get point balance
// @Tags Points
// @Produce json
// @Security Bearer
// @Success 200 {object} utils.APIResponse{data=dto.PointBalanceDTO}
// @Router /points/balance [get]
func (h *PointsHandler) GetBalance(c *gin.Context) {
	userID, ok := utils.GetUserID(c)
	if !ok {
		utils.ErrorResponseWithError(c, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	acct, err := h.balanceUC.Execute(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorw("failed to load point balance", "user_id", userID, "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", dto.PointBalanceDTO{
		UserID:    acct.UserID,
		Balance:   acct.Balance,
		UpdatedAt: acct.UpdatedAt,
	})
}

// ListFlows pages through the caller's point history, newest first.
// @Summary List point flows
// @Tags Points
// @Produce json
// @Security Bearer
// @Param page query int false "page number"
// @Param page_size query int false "page size, max 100"
// @Success 200 {object} utils.APIResponse{data=utils.ListResponse{items=[]dto.PointFlowDTO}}
// @Router /points/flows [get]
func (h *PointsHandler) ListFlows(c *gin.Context) {
	userID, ok := utils.GetUserID(c)
	if !ok {
		utils.ErrorResponseWithError(c, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	p := utils.ParsePagination(c)
	result, err := h.flowsUC.Execute(c.Request.Context(), usecases.ListPointFlowsQuery{
		UserID:   userID,
		Page:     p.Page,
		PageSize: p.PageSize,
	})
	if err != nil {
		h.logger.Errorw("failed to list point flows", "user_id", userID, "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.ListSuccessResponse(c, dto.ToPointFlowDTOList(result.Flows), result.Total, p)
}

type ConsumePointsRequest struct {
	// UserID is honoured only for service callers spending on a user's behalf.
	UserID         uint   `json:"user_id"`
	Points         int64  `json:"points" binding:"required,min=1"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=128"`
	Reason         string `json:"reason" binding:"omitempty,max=255"`
}

// ConsumePoints spends points. Replaying an idempotency key returns the
// original flow with applied=false.
// @Summary Consume points
// @Tags Points
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body ConsumePointsRequest true "consume request"
// @Success 200 {object} utils.APIResponse{data=dto.PointMutationDTO}
// @Failure 400 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse "insufficient points or ledger conflict"
// @Router /points/consume [post]
func (h *PointsHandler) ConsumePoints(c *gin.Context) {
	var req ConsumePointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("invalid request body", err.Error()))
		return
	}

	userID, ok := utils.GetUserID(c)
	if utils.GetUserRole(c) == authorization.RoleService && req.UserID != 0 {
		userID, ok = req.UserID, true
	}
	if !ok {
		utils.ErrorResponseWithError(c, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	result, err := h.consumeUC.Execute(c.Request.Context(), usecases.ConsumePointsCommand{
		UserID:         userID,
		Points:         req.Points,
		IdempotencyKey: req.IdempotencyKey,
		Reason:         req.Reason,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toPointMutationDTO(result))
}

func toPointMutationDTO(r *usecases.PointFlowResult) dto.PointMutationDTO {
	return dto.PointMutationDTO{
		Flow:    dto.ToPointFlowDTO(r.Flow),
		Balance: r.Balance,
		Applied: r.Applied,
	}
}
