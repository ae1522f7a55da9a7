package logic

import (
	"fmt"
	"net/mail"
	"strconv"

	"github.com/blues/dcs/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DonationLogic 捐赠记录业务逻辑，承载对账核心：
// 以transaction_id为幂等键，状态迁移全部走条件更新
type DonationLogic struct {
	db         *gorm.DB
	donorLogic *DonorLogic
}

// NewDonationLogic 创建捐赠记录业务逻辑
func NewDonationLogic(db *gorm.DB) *DonationLogic {
	return &DonationLogic{
		db:         db,
		donorLogic: NewDonorLogic(db),
	}
}

// ResolveResult ResolveOrCreate的结果
type ResolveResult struct {
	Donation *model.Donation
	// WasExisting 命中已结清记录或并发竞争失败，本次未做任何变更
	WasExisting bool
	// Transitioned 本次发生了创建或 pending→completed 迁移，
	// 调用方据此决定是否发送回执邮件
	Transitioned bool
	// Created 本次新建了记录（区别于迁移已有pending记录）
	Created bool
}

// ResolveOrCreate 按交易ID定位或创建捐赠记录。
// 同一交易ID重复投递必须幂等：已结清的记录原样返回且不做任何变更；
// pending记录允许迁移到completed并补全缺失的捐赠人字段；
// 不存在则按候选数据创建为目标状态
func (c *DonationLogic) ResolveOrCreate(candidate *model.Donation, target model.DonationStatus) (*ResolveResult, error) {
	if err := c.validateDonation(candidate); err != nil {
		return nil, err
	}
	if target != model.DonationStatusPending && target != model.DonationStatusCompleted {
		return nil, newValidationError("目标状态只能是pending或completed")
	}

	// 交易ID严格按存储值精确匹配，渠道前缀（pi_/sub_/givewp_等）由调用方处理
	var existing model.Donation
	err := c.db.Where("transaction_id = ?", candidate.TransactionId).First(&existing).Error
	if err == nil {
		return c.resolveExisting(&existing, candidate, target)
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	donation, err := c.createDonation(candidate, target)
	if err != nil {
		return nil, err
	}
	return &ResolveResult{
		Donation:     donation,
		WasExisting:  false,
		Transitioned: true,
		Created:      true,
	}, nil
}

// resolveExisting 处理交易ID命中已有记录的情况
func (c *DonationLogic) resolveExisting(existing, candidate *model.Donation, target model.DonationStatus) (*ResolveResult, error) {
	switch existing.Status {
	case model.DonationStatusDeleted:
		// 终态，任何重投都不再变更
		return &ResolveResult{Donation: existing, WasExisting: true}, nil
	case model.DonationStatusCompleted, model.DonationStatusRefunded, model.DonationStatusCancelled:
		// 已结清，重复事件不产生任何写入
		return &ResolveResult{Donation: existing, WasExisting: true}, nil
	}

	if target != model.DonationStatusCompleted {
		// pending记录重复创建，原样返回
		return &ResolveResult{Donation: existing, WasExisting: true}, nil
	}

	return c.completePending(existing, candidate)
}

// completePending 将pending记录迁移到completed，同时补全缺失的捐赠人字段。
// 条件更新保证并发投递只有一方成功，另一方视为已处理
func (c *DonationLogic) completePending(existing, candidate *model.Donation) (*ResolveResult, error) {
	updates := map[string]interface{}{
		"status": model.DonationStatusCompleted,
	}

	// 只补空缺，绝不用空值覆盖已有的捐赠人信息
	if existing.DonorName == "" && candidate.DonorName != "" {
		updates["donor_name"] = candidate.DonorName
	}
	if existing.DonorEmail == "" && candidate.DonorEmail != "" {
		updates["donor_email"] = candidate.DonorEmail
	}
	if existing.DisplayName == "" && candidate.DisplayName != "" {
		updates["display_name"] = candidate.DisplayName
	}
	if existing.DonationMessage == "" && candidate.DonationMessage != "" {
		updates["donation_message"] = candidate.DonationMessage
	}

	email := existing.DonorEmail
	if email == "" {
		email = candidate.DonorEmail
	}
	if existing.DonorId == 0 && email != "" {
		name := existing.DonorName
		if name == "" {
			name = candidate.DonorName
		}
		donor, err := c.donorLogic.ResolveByEmail(email, name)
		if err != nil {
			return nil, err
		}
		if donor != nil {
			updates["donor_id"] = donor.Id
		}
	}

	if isMetaEmpty(existing.Metadata.Data()) && !isMetaEmpty(candidate.Metadata.Data()) {
		updates["metadata"] = datatypes.NewJSONType(candidate.Metadata.Data())
	}

	res := c.db.Model(&model.Donation{}).
		Where("id = ? AND status = ?", existing.Id, model.DonationStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// 并发投递方已完成迁移
		var current model.Donation
		if err := c.db.First(&current, existing.Id).Error; err != nil {
			return nil, err
		}
		return &ResolveResult{Donation: &current, WasExisting: true}, nil
	}

	var updated model.Donation
	if err := c.db.First(&updated, existing.Id).Error; err != nil {
		return nil, err
	}
	return &ResolveResult{
		Donation:     &updated,
		WasExisting:  false,
		Transitioned: true,
	}, nil
}

// createDonation 创建新记录并快照配捐倍数
func (c *DonationLogic) createDonation(candidate *model.Donation, target model.DonationStatus) (*model.Donation, error) {
	if candidate.DonorEmail != "" {
		donor, err := c.donorLogic.ResolveByEmail(candidate.DonorEmail, candidate.DonorName)
		if err != nil {
			return nil, err
		}
		if donor != nil {
			candidate.DonorId = donor.Id
		}
	}

	if err := c.applyMatching(candidate); err != nil {
		return nil, err
	}

	candidate.Status = target
	if err := c.db.Create(candidate).Error; err != nil {
		return nil, err
	}
	return candidate, nil
}

// applyMatching 在创建时确定配捐标记并快照倍数。
// 之后活动倍数变更不回溯历史记录。
// 候选数据已带快照时（续费继承首笔记录）不重算
func (c *DonationLogic) applyMatching(candidate *model.Donation) error {
	if candidate.MatchedMultiplier > 0 {
		return nil
	}
	candidate.MatchedMultiplier = 1
	if candidate.CampaignId == 0 {
		candidate.IsMatched = false
		return nil
	}

	var campaign model.Campaign
	if err := c.db.First(&campaign, candidate.CampaignId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &NotFoundError{Resource: "活动", Id: formatId(candidate.CampaignId)}
		}
		return err
	}

	// 活动开启配捐时自动标记；管理员手动勾选时也沿用活动倍数
	if campaign.MatchingEnabled {
		candidate.IsMatched = true
	}
	if candidate.IsMatched && campaign.MatchingMultiplier > 1 {
		candidate.MatchedMultiplier = campaign.MatchingMultiplier
	}
	return nil
}

// ConfirmByReference 浏览器跳转回站内时按渠道引用（transaction_id）确认pending捐赠
func (c *DonationLogic) ConfirmByReference(reference string, donorFields *model.Donation) (*ResolveResult, error) {
	if reference == "" {
		return nil, newValidationError("渠道引用不能为空")
	}

	var existing model.Donation
	err := c.db.Where("transaction_id = ?", reference).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return nil, &NotFoundError{Resource: "捐赠记录", Id: reference}
	}
	if err != nil {
		return nil, err
	}

	if donorFields == nil {
		donorFields = &model.Donation{}
	}
	donorFields.TransactionId = existing.TransactionId
	donorFields.Amount = existing.Amount
	return c.resolveExisting(&existing, donorFields, model.DonationStatusCompleted)
}

// CreateManual 管理员手工录入，直接创建为completed
func (c *DonationLogic) CreateManual(candidate *model.Donation) (*model.Donation, error) {
	if candidate.TransactionId == "" {
		candidate.TransactionId = "manual_" + uuid.NewString()
	}
	if candidate.PaymentMethod == "" {
		candidate.PaymentMethod = model.PaymentMethodManual
	}
	result, err := c.ResolveOrCreate(candidate, model.DonationStatusCompleted)
	if err != nil {
		return nil, err
	}
	if result.WasExisting {
		return nil, newValidationError("交易ID已存在")
	}
	return result.Donation, nil
}

// Transition 条件状态迁移。命中0行说明状态已被并发变更，返回ErrConflict
func (c *DonationLogic) Transition(donationId int64, from, to model.DonationStatus) error {
	if !isTransitionAllowed(from, to) {
		return newValidationError(fmt.Sprintf("不允许的状态迁移: %s -> %s", from, to))
	}
	res := c.db.Model(&model.Donation{}).
		Where("id = ? AND status = ?", donationId, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// isTransitionAllowed 状态机白名单
func isTransitionAllowed(from, to model.DonationStatus) bool {
	switch from {
	case model.DonationStatusPending:
		return to == model.DonationStatusCompleted || to == model.DonationStatusCancelled || to == model.DonationStatusDeleted
	case model.DonationStatusCompleted:
		return to == model.DonationStatusRefunded || to == model.DonationStatusCancelled || to == model.DonationStatusDeleted
	case model.DonationStatusRefunded, model.DonationStatusCancelled:
		return to == model.DonationStatusDeleted
	}
	return false
}

// Delete 管理员软删除。deleted是终态，之后的任何操作都不再接受
func (c *DonationLogic) Delete(donationId int64) error {
	var donation model.Donation
	if err := c.db.First(&donation, donationId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &NotFoundError{Resource: "捐赠记录", Id: formatId(donationId)}
		}
		return err
	}
	if donation.Status == model.DonationStatusDeleted {
		return nil
	}

	res := c.db.Model(&model.Donation{}).
		Where("id = ? AND status <> ?", donationId, model.DonationStatusDeleted).
		Update("status", model.DonationStatusDeleted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// GetDonation 获取捐赠记录
func (c *DonationLogic) GetDonation(donationId int64) (*model.Donation, error) {
	var donation model.Donation
	if err := c.db.First(&donation, donationId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "捐赠记录", Id: formatId(donationId)}
		}
		return nil, err
	}
	return &donation, nil
}

// DonationFilter 管理端列表筛选条件
type DonationFilter struct {
	Status        model.DonationStatus
	CampaignId    int64
	PaymentMethod string
	NeedsReview   *bool
}

// ListDonations 管理端捐赠列表，deleted记录默认排除，显式筛选时可见
func (c *DonationLogic) ListDonations(filter DonationFilter, page, pageSize int) ([]model.Donation, int64, error) {
	query := c.db.Model(&model.Donation{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	} else {
		query = query.Where("status <> ?", model.DonationStatusDeleted)
	}
	if filter.CampaignId != 0 {
		query = query.Where("campaign_id = ?", filter.CampaignId)
	}
	if filter.PaymentMethod != "" {
		query = query.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.NeedsReview != nil {
		query = query.Where("needs_review = ?", *filter.NeedsReview)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var donations []model.Donation
	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&donations).Error; err != nil {
		return nil, 0, err
	}
	return donations, total, nil
}

// RecentCompleted 公开页的最近捐赠，只含completed
func (c *DonationLogic) RecentCompleted(limit int) ([]model.Donation, error) {
	var donations []model.Donation
	if err := c.db.Where("status = ?", model.DonationStatusCompleted).
		Order("created_at DESC").
		Limit(limit).
		Find(&donations).Error; err != nil {
		return nil, err
	}
	return donations, nil
}

// validateDonation 校验捐赠数据
func (c *DonationLogic) validateDonation(donation *model.Donation) error {
	if donation.TransactionId == "" {
		return newValidationError("交易ID不能为空")
	}
	if !donation.Amount.GreaterThan(decimal.Zero) {
		return newValidationError("捐赠金额必须大于0")
	}
	if donation.DonorEmail != "" {
		if _, err := mail.ParseAddress(donation.DonorEmail); err != nil {
			return newValidationError("捐赠人邮箱格式不正确")
		}
	}
	if donation.Frequency == "" {
		donation.Frequency = model.FrequencyOnce
	}
	return nil
}

// isMetaEmpty 判断metadata是否为空
func isMetaEmpty(m model.Meta) bool {
	return m.Stripe == nil && m.PayPal == nil && m.PayArc == nil &&
		m.GiveWP == nil && m.Refund == nil && len(m.Extra) == 0
}

func formatId(id int64) string {
	return strconv.FormatInt(id, 10)
}
