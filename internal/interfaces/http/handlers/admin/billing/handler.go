// Package billing provides HTTP handlers for admin plan, entitlement and
// point operations.
package billing

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/docpilot/internal/application/billing/dto"
	"github.com/orris-inc/docpilot/internal/application/billing/usecases"
	"github.com/orris-inc/docpilot/internal/domain/billing"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/logger"
	"github.com/orris-inc/docpilot/internal/shared/utils"
)

type planManager interface {
	CreatePlan(ctx context.Context, cmd usecases.CreatePlanCommand) (*billing.Plan, error)
	UpdatePlan(ctx context.Context, cmd usecases.UpdatePlanCommand) (*billing.Plan, error)
	SetPlanActive(ctx context.Context, code string, active bool) (*billing.Plan, error)
	UpsertEntitlement(ctx context.Context, cmd usecases.UpsertEntitlementCommand) (*billing.PlanEntitlement, error)
	DeleteEntitlement(ctx context.Context, planCode, key string) error
}

type planLister interface {
	Execute(ctx context.Context, activeOnly bool) ([]*dto.PlanDTO, error)
}

type pointAdjuster interface {
	Execute(ctx context.Context, cmd usecases.AdjustPointsCommand) (*usecases.PointFlowResult, error)
}

// Handler handles admin billing operations
type Handler struct {
	manage planManager
	list   planLister
	adjust pointAdjuster
	logger logger.Interface
}

// NewHandler creates a new admin billing handler
func NewHandler(manage planManager, list planLister, adjust pointAdjuster, logger logger.Interface) *Handler {
	return &Handler{
		manage: manage,
		list:   list,
		adjust: adjust,
		logger: logger,
	}
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("invalid request body", err.Error()))
		return false
	}
	return true
}

type CreatePlanRequest struct {
	Code          string         `json:"code" binding:"required,max=64"`
	Name          string         `json:"name" binding:"required,max=128"`
	Description   string         `json:"description"`
	PriceCents    int64          `json:"price_cents" binding:"min=0"`
	Currency      string         `json:"currency" binding:"required,len=3"`
	MonthlyPoints int64          `json:"monthly_points" binding:"min=0"`
	BillingCycle  string         `json:"billing_cycle" binding:"required"`
	TrialDays     int            `json:"trial_days" binding:"min=0"`
	Metadata      map[string]any `json:"metadata"`
}

type UpdatePlanRequest struct {
	Name          *string        `json:"name"`
	Description   *string        `json:"description"`
	PriceCents    *int64         `json:"price_cents"`
	Currency      string         `json:"currency" binding:"omitempty,len=3"`
	MonthlyPoints *int64         `json:"monthly_points"`
	BillingCycle  *string        `json:"billing_cycle"`
	TrialDays     *int           `json:"trial_days"`
	Metadata      map[string]any `json:"metadata"`
}

type UpdatePlanStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive"`
}

type UpsertEntitlementRequest struct {
	Enabled  bool           `json:"enabled"`
	Value    string         `json:"value"`
	Limit    *int64         `json:"limit"`
	Metadata map[string]any `json:"metadata"`
}

type AdjustPointsRequest struct {
	UserID         uint   `json:"user_id" binding:"required"`
	Points         int64  `json:"points" binding:"required"`
	Reason         string `json:"reason" binding:"required,max=255"`
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=128"`
}

// ListPlans lists every plan including inactive ones.
// @Summary List all plans
// @Tags Admin Billing
// @Produce json
// @Security Bearer
// @Success 200 {object} utils.APIResponse{data=[]dto.PlanDTO}
// @Router /admin/plans [get]
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.list.Execute(c.Request.Context(), false)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", plans)
}

// CreatePlan creates a plan.
// @Summary Create plan
// @Tags Admin Billing
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body CreatePlanRequest true "plan"
// @Success 201 {object} utils.APIResponse{data=dto.PlanDTO}
// @Failure 400 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Router /admin/plans [post]
func (h *Handler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if !bindJSON(c, &req) {
		return
	}

	plan, err := h.manage.CreatePlan(c.Request.Context(), usecases.CreatePlanCommand{
		Code:          req.Code,
		Name:          req.Name,
		Description:   req.Description,
		PriceCents:    req.PriceCents,
		Currency:      req.Currency,
		MonthlyPoints: req.MonthlyPoints,
		BillingCycle:  req.BillingCycle,
		TrialDays:     req.TrialDays,
		Metadata:      req.Metadata,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, dto.ToPlanDTO(plan, nil), "Plan created successfully")
}

// UpdatePlan patches a plan by code.
// @Summary Update plan
// @Tags Admin Billing
// @Accept json
// @Produce json
// @Security Bearer
// @Param code path string true "plan code"
// @Param request body UpdatePlanRequest true "changes"
// @Success 200 {object} utils.APIResponse{data=dto.PlanDTO}
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Router /admin/plans/{code} [patch]
func (h *Handler) UpdatePlan(c *gin.Context) {
	var req UpdatePlanRequest
	if !bindJSON(c, &req) {
		return
	}

	plan, err := h.manage.UpdatePlan(c.Request.Context(), usecases.UpdatePlanCommand{
		Code:          c.Param("code"),
		Name:          req.Name,
		Description:   req.Description,
		PriceCents:    req.PriceCents,
		Currency:      req.Currency,
		MonthlyPoints: req.MonthlyPoints,
		BillingCycle:  req.BillingCycle,
		TrialDays:     req.TrialDays,
		Metadata:      req.Metadata,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Plan updated successfully", dto.ToPlanDTO(plan, nil))
}

// UpdatePlanStatus activates or deactivates a plan.
// @Summary Update plan status
// @Tags Admin Billing
// @Accept json
// @Produce json
// @Security Bearer
// @Param code path string true "plan code"
// @Param request body UpdatePlanStatusRequest true "status"
// @Success 200 {object} utils.APIResponse{data=dto.PlanDTO}
// @Router /admin/plans/{code}/status [patch]
func (h *Handler) UpdatePlanStatus(c *gin.Context) {
	var req UpdatePlanStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	code := c.Param("code")
	plan, err := h.manage.SetPlanActive(c.Request.Context(), code, req.Status == "active")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	h.logger.Infow("plan status changed", "plan_code", code, "status", req.Status)
	utils.SuccessResponse(c, http.StatusOK, "", dto.ToPlanDTO(plan, nil))
}

// UpsertEntitlement creates or replaces one entitlement of a plan.
// @Summary Upsert plan entitlement
// @Tags Admin Billing
// @Accept json
// @Produce json
// @Security Bearer
// @Param code path string true "plan code"
// @Param key path string true "entitlement key"
// @Param request body UpsertEntitlementRequest true "entitlement"
// @Success 200 {object} utils.APIResponse{data=dto.EntitlementDTO}
// @Router /admin/plans/{code}/entitlements/{key} [put]
func (h *Handler) UpsertEntitlement(c *gin.Context) {
	var req UpsertEntitlementRequest
	if !bindJSON(c, &req) {
		return
	}

	ent, err := h.manage.UpsertEntitlement(c.Request.Context(), usecases.UpsertEntitlementCommand{
		PlanCode: c.Param("code"),
		Key:      c.Param("key"),
		Enabled:  req.Enabled,
		Value:    req.Value,
		Limit:    req.Limit,
		Metadata: req.Metadata,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", dto.ToEntitlementDTO(ent))
}

// DeleteEntitlement removes one entitlement from a plan.
// @Summary Delete plan entitlement
// @Tags Admin Billing
// @Security Bearer
// @Param code path string true "plan code"
// @Param key path string true "entitlement key"
// @Success 204
// @Router /admin/plans/{code}/entitlements/{key} [delete]
func (h *Handler) DeleteEntitlement(c *gin.Context) {
	if err := h.manage.DeleteEntitlement(c.Request.Context(), c.Param("code"), c.Param("key")); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}

// AdjustPoints applies a manual correction to a user's balance.
// @Summary Adjust points
// @Tags Admin Billing
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body AdjustPointsRequest true "adjustment"
// @Success 200 {object} utils.APIResponse{data=dto.PointMutationDTO}
// @Router /admin/points/adjust [post]
func (h *Handler) AdjustPoints(c *gin.Context) {
	var req AdjustPointsRequest
	if !bindJSON(c, &req) {
		return
	}
	operatorID, _ := utils.GetUserID(c)

	result, err := h.adjust.Execute(c.Request.Context(), usecases.AdjustPointsCommand{
		OperatorID:     operatorID,
		UserID:         req.UserID,
		Points:         req.Points,
		IdempotencyKey: req.IdempotencyKey,
		Reason:         req.Reason,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", dto.PointMutationDTO{
		Flow:    dto.ToPointFlowDTO(result.Flow),
		Balance: result.Balance,
		Applied: result.Applied,
	})
}
