package handler

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/event"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/logic"
	"github.com/gin-gonic/gin"
)

// WebhookHandler 渠道回调入口。
// 报文不可恢复（解析失败、缺字段）返回200让渠道停止重试；
// 处理失败（数据库、下游暂时不可用）返回5xx让渠道按退避重试
type WebhookHandler struct {
	engine      *event.Engine
	givewpCfg   config.GiveWPConfig
	normalizers map[string]event.Normalizer
}

func NewWebhookHandler(engine *event.Engine, givewpCfg config.GiveWPConfig) *WebhookHandler {
	normalizers := map[string]event.Normalizer{}
	for _, n := range []event.Normalizer{
		event.NewStripeNormalizer(),
		event.NewPayPalNormalizer(),
		event.NewPayArcNormalizer(),
		event.NewGiveWPNormalizer(),
	} {
		normalizers[n.Provider()] = n
	}
	return &WebhookHandler{
		engine:      engine,
		givewpCfg:   givewpCfg,
		normalizers: normalizers,
	}
}

// HandleStripe Stripe回调
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	h.handle(c, "stripe")
}

// HandlePayPal PayPal回调
func (h *WebhookHandler) HandlePayPal(c *gin.Context) {
	h.handle(c, "paypal")
}

// HandlePayArc PayArc回调
func (h *WebhookHandler) HandlePayArc(c *gin.Context) {
	h.handle(c, "payarc")
}

// HandleGiveWP GiveWP导入回调，先校验共享密钥
func (h *WebhookHandler) HandleGiveWP(c *gin.Context) {
	secret := c.GetHeader("X-GiveWP-Secret")
	if h.givewpCfg.SharedSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(h.givewpCfg.SharedSecret)) != 1 {
		ErrorResponse(c, http.StatusUnauthorized, "共享密钥校验失败")
		return
	}
	h.handle(c, "givewp")
}

func (h *WebhookHandler) handle(c *gin.Context, provider string) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "读取请求体失败")
		return
	}

	normalizer, ok := h.normalizers[provider]
	if !ok {
		ErrorResponse(c, http.StatusNotFound, "未知的支付渠道")
		return
	}

	ev, err := normalizer.Normalize(payload)
	if err != nil {
		if logic.IsValidation(err) {
			// 报文本身有问题，重试也不会成功
			logger.Warn("Malformed %s webhook payload: %v", provider, err)
			SuccessResponse(c, http.StatusOK, "报文已忽略", gin.H{"ignored": true})
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	if ev == nil {
		// 不关心的事件类型
		SuccessResponse(c, http.StatusOK, "事件已忽略", gin.H{"ignored": true})
		return
	}
	ev.Raw = payload

	result, err := h.engine.Handle(ev)
	if err != nil {
		if logic.IsValidation(err) || logic.IsPermanent(err) {
			// 永久失败已入库存证，返回200避免渠道无意义重试
			logger.Warn("Permanent failure handling %s event %s: %v", provider, ev.EventId, err)
			SuccessResponse(c, http.StatusOK, "事件处理失败已记录", gin.H{"ignored": true})
			return
		}
		logger.Error("Transient failure handling %s event %s: %v", provider, ev.EventId, err)
		ErrorResponse(c, http.StatusServiceUnavailable, "事件处理暂时失败")
		return
	}

	data := gin.H{
		"outcome":   string(result.Outcome),
		"duplicate": result.Outcome == event.OutcomeDuplicate,
	}
	if result.Donation != nil {
		data["donationId"] = result.Donation.Id
	}
	SuccessResponse(c, http.StatusOK, "事件处理成功", data)
}
