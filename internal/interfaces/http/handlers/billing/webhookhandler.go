// Package billing provides HTTP handlers for checkout, payment webhooks,
// points and entitlements.
package billing

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/docpilot/internal/application/billing/dto"
	"github.com/orris-inc/docpilot/internal/application/billing/usecases"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/logger"
	"github.com/orris-inc/docpilot/internal/shared/utils"
)

// maxWebhookBody caps what a webhook caller can make us buffer.
const maxWebhookBody = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

type WebhookHandler struct {
	webhookUC processWebhookUseCase
	notifyUC  providerNotifyUseCase
	logger    logger.Interface
}

// NewWebhookHandler wires the internal HMAC webhook and the WeChat Pay
// notify endpoint. notifyUC may be nil when WeChat Pay is disabled.
func NewWebhookHandler(webhookUC processWebhookUseCase, notifyUC providerNotifyUseCase, logger logger.Interface) *WebhookHandler {
	return &WebhookHandler{
		webhookUC: webhookUC,
		notifyUC:  notifyUC,
		logger:    logger,
	}
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) > maxWebhookBody {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// HandlePaymentWebhook accepts a signed payment event.
// @Summary Payment webhook
// @Description Signed with hex HMAC-SHA256 of the raw body in X-Signature
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Signature header string true "hex HMAC-SHA256 or sha256=<hex>"
// @Success 200 {object} utils.APIResponse{data=dto.WebhookResultDTO}
// @Failure 400 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Router /webhooks/payments [post]
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("invalid webhook body", err.Error()))
		return
	}

	signature := c.GetHeader("X-Signature")
	if signature == "" {
		signature = c.GetHeader("X-Webhook-Signature")
	}

	result, err := h.webhookUC.Execute(c.Request.Context(), usecases.ProcessWebhookCommand{
		Body:      body,
		Signature: signature,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toWebhookResultDTO(result))
}

type wechatNotifyResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleWeChatNotify answers in the body format WeChat Pay expects. Any
// non-2xx reply makes WeChat redeliver.
// @Summary WeChat Pay v3 notification
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} wechatNotifyResponse
// @Failure 400 {object} wechatNotifyResponse
// @Failure 403 {object} wechatNotifyResponse
// @Router /webhooks/wechatpay [post]
func (h *WebhookHandler) HandleWeChatNotify(c *gin.Context) {
	if h.notifyUC == nil {
		c.JSON(http.StatusNotFound, wechatNotifyResponse{Code: "FAIL", Message: "wechat pay is not enabled"})
		return
	}

	body, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, wechatNotifyResponse{Code: "FAIL", Message: err.Error()})
		return
	}

	result, err := h.notifyUC.Execute(c.Request.Context(), usecases.ProviderNotifyCommand{
		Header: c.Request.Header,
		Body:   body,
	})
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"
		if appErr := apperrors.GetAppError(err); appErr != nil {
			status = appErr.Code
			message = appErr.Message
		}
		c.JSON(status, wechatNotifyResponse{Code: "FAIL", Message: message})
		return
	}

	h.logger.Debugw("wechat pay notification handled",
		"outcome", result.Outcome,
		"event_id", result.EventID,
		"external_order_id", result.ExternalOrderID,
	)
	c.JSON(http.StatusOK, wechatNotifyResponse{Code: "SUCCESS", Message: "OK"})
}

func toWebhookResultDTO(r *usecases.ProcessResult) dto.WebhookResultDTO {
	return dto.WebhookResultDTO{
		Status:          string(r.Outcome),
		EventType:       r.EventType,
		EventID:         r.EventID,
		ExternalOrderID: r.ExternalOrderID,
		OrderStatus:     r.OrderStatus.String(),
		Detail:          r.Detail,
	}
}
