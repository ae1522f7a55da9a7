package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/dcs/internal/event"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DonationHandler struct {
	donationLogic *logic.DonationLogic
	refundLogic   *logic.RefundLogic
	crmLogic      *logic.CrmLogic
	mailer        event.Mailer
}

func NewDonationHandler(db *gorm.DB, refundLogic *logic.RefundLogic, crmLogic *logic.CrmLogic, mailer event.Mailer) *DonationHandler {
	return &DonationHandler{
		donationLogic: logic.NewDonationLogic(db),
		refundLogic:   refundLogic,
		crmLogic:      crmLogic,
		mailer:        mailer,
	}
}

// ConfirmDonationRequest 支付完成跳转回站内时的确认请求
type ConfirmDonationRequest struct {
	Reference       string `json:"reference" binding:"required"`
	DonorName       string `json:"donorName"`
	DonorEmail      string `json:"donorEmail"`
	DisplayName     string `json:"displayName"`
	DonationMessage string `json:"donationMessage"`
}

// ConfirmDonation 浏览器回跳确认。与webhook到达顺序不确定，
// 先到的一方完成迁移，后到的一方幂等返回
func (h *DonationHandler) ConfirmDonation(c *gin.Context) {
	var req ConfirmDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	donorFields := &model.Donation{
		DonorName:       req.DonorName,
		DonorEmail:      req.DonorEmail,
		DisplayName:     req.DisplayName,
		DonationMessage: req.DonationMessage,
	}
	result, err := h.donationLogic.ConfirmByReference(req.Reference, donorFields)
	if err != nil {
		if logic.IsNotFound(err) {
			ErrorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		if logic.IsValidation(err) {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	// 本次真正发生迁移才发邮件，幂等命中不重复发送
	if result.Transitioned {
		h.sendNotifications(result.Donation)
	}

	SuccessResponse(c, http.StatusOK, "确认成功", gin.H{
		"donation":  ToDonationResponse(result.Donation),
		"duplicate": result.WasExisting,
	})
}

// GetRecentDonations 公开页最近捐赠，只含completed记录且不暴露隐私字段
func (h *DonationHandler) GetRecentDonations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	donations, err := h.donationLogic.RecentCompleted(limit)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", gin.H{
		"donations": ToPublicDonationResponseList(donations),
	})
}

// GetDonations 管理端捐赠列表
func (h *DonationHandler) GetDonations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	filter := logic.DonationFilter{
		Status:        model.DonationStatus(c.Query("status")),
		PaymentMethod: c.Query("payment_method"),
	}
	if campaignId := c.Query("campaign_id"); campaignId != "" {
		id, err := strconv.ParseInt(campaignId, 10, 64)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "活动ID格式不正确")
			return
		}
		filter.CampaignId = id
	}
	if needsReview := c.Query("needs_review"); needsReview != "" {
		v := needsReview == "true"
		filter.NeedsReview = &v
	}

	donations, total, err := h.donationLogic.ListDonations(filter, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", gin.H{
		"donations":  ToDonationResponseList(donations),
		"pagination": NewPagination(page, pageSize, total),
	})
}

// GetDonation 管理端捐赠详情
func (h *DonationHandler) GetDonation(c *gin.Context) {
	id, err := parseIdParam(c)
	if err != nil {
		return
	}

	donation, err := h.donationLogic.GetDonation(id)
	if err != nil {
		if logic.IsNotFound(err) {
			ErrorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", gin.H{
		"donation": ToDonationResponse(donation),
	})
}

// CreateManualDonationRequest 管理员手工录入请求
type CreateManualDonationRequest struct {
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Frequency       string          `json:"frequency"`
	DonorName       string          `json:"donorName"`
	DonorEmail      string          `json:"donorEmail"`
	DisplayName     string          `json:"displayName"`
	DonationMessage string          `json:"donationMessage"`
	PaymentMethod   string          `json:"paymentMethod"`
	TransactionId   string          `json:"transactionId"`
	CampaignId      int64           `json:"campaignId"`
}

// CreateManualDonation 管理员手工录入捐赠（线下转账、支票等），
// 直接创建为completed，不发邮件
func (h *DonationHandler) CreateManualDonation(c *gin.Context) {
	var req CreateManualDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	candidate := &model.Donation{
		Amount:          req.Amount,
		Frequency:       model.Frequency(req.Frequency),
		DonorName:       req.DonorName,
		DonorEmail:      req.DonorEmail,
		DisplayName:     req.DisplayName,
		DonationMessage: req.DonationMessage,
		PaymentMethod:   req.PaymentMethod,
		TransactionId:   req.TransactionId,
		CampaignId:      req.CampaignId,
	}
	donation, err := h.donationLogic.CreateManual(candidate)
	if err != nil {
		if logic.IsValidation(err) {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusCreated, "录入成功", gin.H{
		"donation": ToDonationResponse(donation),
	})
}

// DeleteDonation 管理员软删除。deleted是终态
func (h *DonationHandler) DeleteDonation(c *gin.Context) {
	id, err := parseIdParam(c)
	if err != nil {
		return
	}

	if err := h.donationLogic.Delete(id); err != nil {
		if logic.IsNotFound(err) {
			ErrorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		if logic.IsConflict(err) {
			ErrorResponse(c, http.StatusConflict, "记录状态已变更，请刷新后重试")
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "删除成功", nil)
}

// RefundDonation 管理员发起退款。先调渠道API，成功后迁移到refunded
func (h *DonationHandler) RefundDonation(c *gin.Context) {
	id, err := parseIdParam(c)
	if err != nil {
		return
	}

	refundId, err := h.refundLogic.Refund(c.Request.Context(), id)
	if err != nil {
		switch {
		case logic.IsNotFound(err):
			ErrorResponse(c, http.StatusNotFound, err.Error())
		case logic.IsValidation(err):
			ErrorResponse(c, http.StatusBadRequest, err.Error())
		case logic.IsConflict(err):
			// 渠道退款已成功但本地状态被并发变更，返回退款ID供人工核对
			logger.Warn("Refund succeeded at provider but local state conflicted, donation_id: %d, refund_id: %s", id, refundId)
			ErrorResponse(c, http.StatusConflict, "渠道退款已成功，但本地状态冲突，退款ID: "+refundId)
		default:
			ErrorResponse(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	SuccessResponse(c, http.StatusOK, "退款成功", gin.H{
		"refundId": refundId,
	})
}

// SyncDonation 手动触发单条捐赠同步到CiviCRM
func (h *DonationHandler) SyncDonation(c *gin.Context) {
	id, err := parseIdParam(c)
	if err != nil {
		return
	}

	result, err := h.crmLogic.Sync(c.Request.Context(), id)
	if err != nil {
		switch {
		case logic.IsNotFound(err):
			ErrorResponse(c, http.StatusNotFound, err.Error())
		case logic.IsValidation(err):
			ErrorResponse(c, http.StatusBadRequest, err.Error())
		default:
			ErrorResponse(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	SuccessResponse(c, http.StatusOK, "同步成功", gin.H{
		"contactId":      result.ContactId,
		"contributionId": result.ContributionId,
		"alreadySynced":  result.AlreadySynced,
	})
}

// sendNotifications 发送回执和管理员通知，失败只记日志
func (h *DonationHandler) sendNotifications(donation *model.Donation) {
	if h.mailer == nil {
		return
	}
	if donation.DonorEmail != "" {
		if err := h.mailer.SendDonorReceipt(donation); err != nil {
			logger.Error("Failed to send donor receipt, donation_id: %d, error: %v", donation.Id, err)
		}
	}
	if err := h.mailer.SendAdminNotification(donation); err != nil {
		logger.Error("Failed to send admin notification, donation_id: %d, error: %v", donation.Id, err)
	}
}

// parseIdParam 解析路径中的记录ID，解析失败时已写入响应
func parseIdParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "ID格式不正确")
		return 0, err
	}
	return id, nil
}
