package logic

import (
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RenewalLogic 月捐续费业务逻辑。
// 每次续费扣款生成一条新的捐赠记录，绝不改动首笔订阅记录
type RenewalLogic struct {
	db            *gorm.DB
	donationLogic *DonationLogic
}

// NewRenewalLogic 创建续费业务逻辑
func NewRenewalLogic(db *gorm.DB, donationLogic *DonationLogic) *RenewalLogic {
	return &RenewalLogic{db: db, donationLogic: donationLogic}
}

// RecordRenewal 记录一次续费扣款。providerInvoiceId是新记录的幂等键，
// 重放的续费回调不会产生第二条记录。
// 找不到首笔订阅记录时宁可入账也不丢弃，但打上needs_review待人工复核
func (r *RenewalLogic) RecordRenewal(providerInvoiceId, subscriptionId, customerId, paymentMethod string, amount decimal.Decimal) (*ResolveResult, error) {
	if providerInvoiceId == "" {
		return nil, newValidationError("续费账单ID不能为空")
	}

	candidate := &model.Donation{
		TransactionId:  providerInvoiceId,
		SubscriptionId: subscriptionId,
		Amount:         amount,
		Frequency:      model.FrequencyMonthly,
		PaymentMethod:  paymentMethod,
	}

	origin := r.findOrigin(subscriptionId, customerId)
	if origin != nil {
		// 继承首笔记录的归属信息
		candidate.DonorId = origin.DonorId
		candidate.DonorName = origin.DonorName
		candidate.DonorEmail = origin.DonorEmail
		candidate.DisplayName = origin.DisplayName
		candidate.DonationMessage = origin.DonationMessage
		candidate.CampaignId = origin.CampaignId
		candidate.IsMatched = origin.IsMatched
		candidate.MatchedMultiplier = origin.MatchedMultiplier
		if candidate.SubscriptionId == "" {
			candidate.SubscriptionId = origin.SubscriptionId
		}
	} else {
		logger.Warn("Renewal %s has no resolvable subscription (sub=%s, customer=%s), recording unlinked",
			providerInvoiceId, subscriptionId, customerId)
		candidate.NeedsReview = true
	}

	return r.donationLogic.ResolveOrCreate(candidate, model.DonationStatusCompleted)
}

// findOrigin 查找订阅的首笔捐赠记录。
// 先按订阅ID，再退回该客户最近的活跃订阅，都找不到返回nil
func (r *RenewalLogic) findOrigin(subscriptionId, customerId string) *model.Donation {
	if subscriptionId != "" {
		var origin model.Donation
		err := r.db.Where("subscription_id = ? AND status <> ?", subscriptionId, model.DonationStatusDeleted).
			Order("created_at ASC").
			First(&origin).Error
		if err == nil {
			return &origin
		}

		// 订阅表里可能有记录而捐赠行尚未落库
		var sub model.PayArcSubscription
		if err := r.db.Where("subscription_id = ?", subscriptionId).First(&sub).Error; err == nil {
			if origin := r.donationById(sub.DonationId); origin != nil {
				return origin
			}
		}
	}

	if customerId != "" {
		var sub model.PayArcSubscription
		err := r.db.Where("customer_id = ? AND active = ?", customerId, true).
			Order("created_at DESC").
			First(&sub).Error
		if err == nil {
			if origin := r.donationById(sub.DonationId); origin != nil {
				return origin
			}
		}
	}

	return nil
}

func (r *RenewalLogic) donationById(id int64) *model.Donation {
	if id == 0 {
		return nil
	}
	var donation model.Donation
	if err := r.db.First(&donation, id).Error; err != nil {
		return nil
	}
	if donation.Status == model.DonationStatusDeleted {
		return nil
	}
	return &donation
}

// RegisterSubscription 订阅建立时登记，供后续续费和取消按订阅ID定位
func (r *RenewalLogic) RegisterSubscription(subscriptionId, customerId string, donationId int64, amount decimal.Decimal) error {
	if subscriptionId == "" {
		return newValidationError("订阅ID不能为空")
	}
	var existing model.PayArcSubscription
	if err := r.db.Where("subscription_id = ?", subscriptionId).First(&existing).Error; err == nil {
		return nil
	}
	sub := model.PayArcSubscription{
		SubscriptionId: subscriptionId,
		CustomerId:     customerId,
		DonationId:     donationId,
		Amount:         amount,
		Active:         true,
	}
	return r.db.Create(&sub).Error
}
