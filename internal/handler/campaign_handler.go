package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CampaignHandler struct {
	campaignLogic *logic.CampaignLogic
	donationLogic *logic.DonationLogic
}

func NewCampaignHandler(db *gorm.DB) *CampaignHandler {
	return &CampaignHandler{
		campaignLogic: logic.NewCampaignLogic(db),
		donationLogic: logic.NewDonationLogic(db),
	}
}

// GetCampaigns 公开活动列表，只返回上线中的活动
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	campaigns, err := h.campaignLogic.ListCampaigns(true)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", gin.H{
		"campaigns": ToCampaignResponseList(campaigns),
	})
}

// GetCampaignBySlug 按slug获取活动详情
func (h *CampaignHandler) GetCampaignBySlug(c *gin.Context) {
	campaign, err := h.campaignLogic.GetCampaignBySlug(c.Param("slug"))
	if err != nil {
		if logic.IsNotFound(err) {
			ErrorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", gin.H{
		"campaign": ToCampaignResponse(campaign),
	})
}

// GetCampaignDonations 活动下的公开捐赠列表
func (h *CampaignHandler) GetCampaignDonations(c *gin.Context) {
	campaign, err := h.campaignLogic.GetCampaignBySlug(c.Param("slug"))
	if err != nil {
		if logic.IsNotFound(err) {
			ErrorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	filter := logic.DonationFilter{
		Status:     model.DonationStatusCompleted,
		CampaignId: campaign.Id,
	}
	donations, total, err := h.donationLogic.ListDonations(filter, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", gin.H{
		"donations":  ToPublicDonationResponseList(donations),
		"pagination": NewPagination(page, pageSize, total),
	})
}

// GetCampaignStats 活动统计：已筹、配捐后总额、笔数、捐赠人数。
// 配捐总额按逐笔快照倍数求和，与列表展示口径一致
func (h *CampaignHandler) GetCampaignStats(c *gin.Context) {
	campaign, err := h.campaignLogic.GetCampaignBySlug(c.Param("slug"))
	if err != nil {
		if logic.IsNotFound(err) {
			ErrorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	stats, err := h.campaignLogic.GetCampaignStats(campaign.Id)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", gin.H{
		"stats": stats,
	})
}

// GetAllCampaigns 管理端活动列表，含已下线活动
func (h *CampaignHandler) GetAllCampaigns(c *gin.Context) {
	campaigns, err := h.campaignLogic.ListCampaigns(false)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", gin.H{
		"campaigns": ToCampaignResponseList(campaigns),
	})
}

// CampaignRequest 管理端活动创建/更新请求
type CampaignRequest struct {
	Title              string          `json:"title" binding:"required"`
	Slug               string          `json:"slug" binding:"required"`
	Description        string          `json:"description"`
	GoalAmount         decimal.Decimal `json:"goalAmount"`
	MatchingEnabled    bool            `json:"matchingEnabled"`
	MatchingMultiplier int             `json:"matchingMultiplier"`
	Active             *bool           `json:"active"`
}

// CreateCampaign 管理端创建活动
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	campaign := &model.Campaign{
		Title:              req.Title,
		Slug:               req.Slug,
		Description:        req.Description,
		GoalAmount:         req.GoalAmount,
		MatchingEnabled:    req.MatchingEnabled,
		MatchingMultiplier: req.MatchingMultiplier,
		Active:             true,
	}
	if req.Active != nil {
		campaign.Active = *req.Active
	}
	if campaign.MatchingMultiplier == 0 {
		campaign.MatchingMultiplier = 1
	}

	if err := h.campaignLogic.CreateCampaign(campaign); err != nil {
		if logic.IsValidation(err) {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusCreated, "创建成功", gin.H{
		"campaign": ToCampaignResponse(campaign),
	})
}

// UpdateCampaign 管理端更新活动。
// 修改倍数只影响之后的捐赠和汇总口径，不回溯已有记录的快照
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	id, err := parseIdParam(c)
	if err != nil {
		return
	}

	campaign, err := h.campaignLogic.GetCampaign(id)
	if err != nil {
		if logic.IsNotFound(err) {
			ErrorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	campaign.Title = req.Title
	campaign.Slug = req.Slug
	campaign.Description = req.Description
	campaign.GoalAmount = req.GoalAmount
	campaign.MatchingEnabled = req.MatchingEnabled
	if req.MatchingMultiplier > 0 {
		campaign.MatchingMultiplier = req.MatchingMultiplier
	}
	if req.Active != nil {
		campaign.Active = *req.Active
	}

	if err := h.campaignLogic.UpdateCampaign(campaign); err != nil {
		if logic.IsValidation(err) {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "更新成功", gin.H{
		"campaign": ToCampaignResponse(campaign),
	})
}

// DeactivateCampaign 管理端下线活动。捐赠记录有审计价值，活动只下线不物理删除
func (h *CampaignHandler) DeactivateCampaign(c *gin.Context) {
	id, err := parseIdParam(c)
	if err != nil {
		return
	}

	if err := h.campaignLogic.DeactivateCampaign(id); err != nil {
		if logic.IsNotFound(err) {
			ErrorResponse(c, http.StatusNotFound, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "活动已下线", nil)
}
