package logic

import (
	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CampaignLogic 募捐活动业务逻辑
type CampaignLogic struct {
	db *gorm.DB
}

// NewCampaignLogic 创建募捐活动业务逻辑
func NewCampaignLogic(db *gorm.DB) *CampaignLogic {
	return &CampaignLogic{db: db}
}

// CreateCampaign 创建活动
func (l *CampaignLogic) CreateCampaign(campaign *model.Campaign) error {
	if err := l.validateCampaign(campaign); err != nil {
		return err
	}
	var existing model.Campaign
	if err := l.db.Where("slug = ?", campaign.Slug).First(&existing).Error; err == nil {
		return newValidationError("活动slug已存在")
	}
	return l.db.Create(campaign).Error
}

// UpdateCampaign 更新活动设置。倍数变更不回溯历史捐赠的快照
func (l *CampaignLogic) UpdateCampaign(campaign *model.Campaign) error {
	if err := l.validateCampaign(campaign); err != nil {
		return err
	}
	var existing model.Campaign
	if err := l.db.First(&existing, campaign.Id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &NotFoundError{Resource: "活动", Id: formatId(campaign.Id)}
		}
		return err
	}
	return l.db.Model(&existing).Updates(map[string]interface{}{
		"title":               campaign.Title,
		"slug":                campaign.Slug,
		"description":         campaign.Description,
		"goal_amount":         campaign.GoalAmount,
		"matching_enabled":    campaign.MatchingEnabled,
		"matching_multiplier": campaign.MatchingMultiplier,
		"active":              campaign.Active,
	}).Error
}

// DeactivateCampaign 下线活动。历史捐赠与统计不受影响
func (l *CampaignLogic) DeactivateCampaign(id int64) error {
	var campaign model.Campaign
	if err := l.db.First(&campaign, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &NotFoundError{Resource: "活动", Id: formatId(id)}
		}
		return err
	}
	return l.db.Model(&campaign).Update("active", false).Error
}

// GetCampaign 获取活动
func (l *CampaignLogic) GetCampaign(id int64) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := l.db.First(&campaign, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "活动", Id: formatId(id)}
		}
		return nil, err
	}
	return &campaign, nil
}

// GetCampaignBySlug 按slug获取活动
func (l *CampaignLogic) GetCampaignBySlug(slug string) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := l.db.Where("slug = ?", slug).First(&campaign).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "活动", Id: slug}
		}
		return nil, err
	}
	return &campaign, nil
}

// ListCampaigns 活动列表
func (l *CampaignLogic) ListCampaigns(onlyActive bool) ([]model.Campaign, error) {
	query := l.db.Model(&model.Campaign{})
	if onlyActive {
		query = query.Where("active = ?", true)
	}
	var campaigns []model.Campaign
	if err := query.Order("created_at DESC").Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}

// DisplayAmount 单条捐赠的对外展示金额，使用创建时快照的倍数。
// 列表与汇总都从这里出，避免两处算法漂移
func DisplayAmount(donation *model.Donation) decimal.Decimal {
	if !donation.IsMatched || donation.MatchedMultiplier <= 1 {
		return donation.Amount
	}
	return donation.Amount.Mul(decimal.NewFromInt(int64(donation.MatchedMultiplier)))
}

// RaisedAmount 活动已筹金额：completed捐赠的本金合计，不含配捐
func (l *CampaignLogic) RaisedAmount(campaignId int64) (decimal.Decimal, error) {
	var raised decimal.NullDecimal
	err := l.db.Model(&model.Donation{}).
		Where("campaign_id = ? AND status = ?", campaignId, model.DonationStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&raised).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !raised.Valid {
		return decimal.Zero, nil
	}
	return raised.Decimal, nil
}

// MatchedTotal 活动配捐后合计：逐条按创建时快照的倍数相乘后求和。
// 与DisplayAmount口径一致，管理员改倍数不影响历史合计
func (l *CampaignLogic) MatchedTotal(campaignId int64) (decimal.Decimal, error) {
	if _, err := l.GetCampaign(campaignId); err != nil {
		return decimal.Zero, err
	}
	var matched decimal.NullDecimal
	err := l.db.Model(&model.Donation{}).
		Where("campaign_id = ? AND status = ?", campaignId, model.DonationStatusCompleted).
		Select("COALESCE(SUM(CASE WHEN is_matched THEN amount * matched_multiplier ELSE amount END), 0)").
		Scan(&matched).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !matched.Valid {
		return decimal.Zero, nil
	}
	return matched.Decimal, nil
}

// CampaignStats 活动统计
type CampaignStats struct {
	CampaignId    int64           `json:"campaign_id"`
	GoalAmount    decimal.Decimal `json:"goal_amount"`
	RaisedAmount  decimal.Decimal `json:"raised_amount"`
	MatchedTotal  decimal.Decimal `json:"matched_total"`
	DonationCount int64           `json:"donation_count"`
	UniqueDonors  int64           `json:"unique_donors"`
}

// GetCampaignStats 获取活动统计信息
func (l *CampaignLogic) GetCampaignStats(campaignId int64) (*CampaignStats, error) {
	campaign, err := l.GetCampaign(campaignId)
	if err != nil {
		return nil, err
	}

	raised, err := l.RaisedAmount(campaignId)
	if err != nil {
		return nil, err
	}
	matched, err := l.MatchedTotal(campaignId)
	if err != nil {
		return nil, err
	}

	stats := &CampaignStats{
		CampaignId:   campaignId,
		GoalAmount:   campaign.GoalAmount,
		RaisedAmount: raised,
		MatchedTotal: matched,
	}

	if err := l.db.Model(&model.Donation{}).
		Where("campaign_id = ? AND status = ?", campaignId, model.DonationStatusCompleted).
		Count(&stats.DonationCount).Error; err != nil {
		return nil, err
	}
	if err := l.db.Model(&model.Donation{}).
		Where("campaign_id = ? AND status = ? AND donor_id <> 0", campaignId, model.DonationStatusCompleted).
		Select("COUNT(DISTINCT donor_id)").
		Scan(&stats.UniqueDonors).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// RefreshRaisedAmount 刷新已筹金额缓存，由定时任务调用
func (l *CampaignLogic) RefreshRaisedAmount(campaignId int64) error {
	raised, err := l.RaisedAmount(campaignId)
	if err != nil {
		return err
	}
	return l.db.Model(&model.Campaign{}).
		Where("id = ?", campaignId).
		Update("raised_amount", raised).Error
}

// validateCampaign 校验活动数据
func (l *CampaignLogic) validateCampaign(campaign *model.Campaign) error {
	if campaign.Title == "" {
		return newValidationError("活动标题不能为空")
	}
	if campaign.Slug == "" {
		return newValidationError("活动slug不能为空")
	}
	if campaign.MatchingMultiplier < 1 {
		return newValidationError("配捐倍数必须大于等于1")
	}
	if campaign.GoalAmount.IsNegative() {
		return newValidationError("目标金额不能为负数")
	}
	return nil
}
