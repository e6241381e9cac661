package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/logger"
	"github.com/orris-inc/docpilot/internal/shared/utils"
)

type EntitlementHandler struct {
	entitlementsUC getEntitlementsUseCase
	plansUC        listPlansUseCase
	logger         logger.Interface
}

func NewEntitlementHandler(entitlementsUC getEntitlementsUseCase, plansUC listPlansUseCase, logger logger.Interface) *EntitlementHandler {
	return &EntitlementHandler{
		entitlementsUC: entitlementsUC,
		plansUC:        plansUC,
		logger:         logger,
	}
}

// GetEntitlements returns the caller's resolved entitlements.
// @Summary Get entitlements
// @Tags Entitlements
// @Produce json
// @Security Bearer
// @Success 200 {object} utils.APIResponse{data=billing.ResolvedEntitlements}
// @Router /entitlements [get]
func (h *EntitlementHandler) GetEntitlements(c *gin.Context) {
	userID, ok := utils.GetUserID(c)
	if !ok {
		utils.ErrorResponseWithError(c, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	resolved, err := h.entitlementsUC.Execute(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorw("failed to resolve entitlements", "user_id", userID, "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", resolved)
}

// ListPlans lists the active plans.
// @Summary List plans
// @Tags Plans
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]dto.PlanDTO}
// @Router /plans [get]
func (h *EntitlementHandler) ListPlans(c *gin.Context) {
	plans, err := h.plansUC.Execute(c.Request.Context(), true)
	if err != nil {
		h.logger.Errorw("failed to list plans", "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", plans)
}
