package handler

import (
	"net/http"

	"github.com/blues/dcs/internal/logic"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type SubscriptionHandler struct {
	refundLogic *logic.RefundLogic
}

func NewSubscriptionHandler(refundLogic *logic.RefundLogic) *SubscriptionHandler {
	return &SubscriptionHandler{refundLogic: refundLogic}
}

// CancelSubscription 管理员取消月捐订阅：先调渠道API，成功后批量落库
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	subscriptionId := c.Param("subscriptionId")

	if err := h.refundLogic.CancelSubscription(c.Request.Context(), subscriptionId); err != nil {
		switch {
		case logic.IsValidation(err):
			ErrorResponse(c, http.StatusBadRequest, err.Error())
		case logic.IsNotFound(err):
			ErrorResponse(c, http.StatusNotFound, err.Error())
		default:
			ErrorResponse(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	SuccessResponse(c, http.StatusOK, "订阅已取消", nil)
}

// UpdateSubscriptionAmountRequest 修改月捐金额请求
type UpdateSubscriptionAmountRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// UpdateSubscriptionAmount 修改月捐金额，只对支持在线改价的渠道生效
func (h *SubscriptionHandler) UpdateSubscriptionAmount(c *gin.Context) {
	subscriptionId := c.Param("subscriptionId")

	var req UpdateSubscriptionAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	if err := h.refundLogic.UpdateSubscriptionAmount(c.Request.Context(), subscriptionId, req.Amount); err != nil {
		switch {
		case logic.IsValidation(err):
			ErrorResponse(c, http.StatusBadRequest, err.Error())
		case logic.IsNotFound(err):
			ErrorResponse(c, http.StatusNotFound, err.Error())
		case logic.IsPermanent(err):
			ErrorResponse(c, http.StatusUnprocessableEntity, err.Error())
		default:
			ErrorResponse(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	SuccessResponse(c, http.StatusOK, "金额已更新", nil)
}
