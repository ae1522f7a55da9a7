package logic

import (
	"context"
	"time"

	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Provider 支付渠道的退款与订阅操作接口，由internal/payment实现
type Provider interface {
	Name() string
	// Supports 判断交易ID/订阅ID是否属于该渠道的命名约定
	Supports(id string) bool
	// Refund 发起退款，返回渠道退款ID
	Refund(ctx context.Context, transactionId string) (string, error)
	// CancelSubscription 取消订阅
	CancelSubscription(ctx context.Context, subscriptionId string) error
	// UpdateSubscriptionAmount 修改订阅金额
	UpdateSubscriptionAmount(ctx context.Context, subscriptionId string, amount decimal.Decimal) error
}

// RefundLogic 退款与订阅管理业务逻辑
type RefundLogic struct {
	db            *gorm.DB
	donationLogic *DonationLogic
	providers     []Provider
}

// NewRefundLogic 创建退款业务逻辑
func NewRefundLogic(db *gorm.DB, donationLogic *DonationLogic, providers []Provider) *RefundLogic {
	return &RefundLogic{
		db:            db,
		donationLogic: donationLogic,
		providers:     providers,
	}
}

// Refund 管理员发起退款。退款不自动重试，渠道错误原样上抛由管理员处理。
// 重复退款在调用渠道之前就被状态检查拦下
func (r *RefundLogic) Refund(ctx context.Context, donationId int64) (string, error) {
	donation, err := r.donationLogic.GetDonation(donationId)
	if err != nil {
		return "", err
	}
	if donation.Status != model.DonationStatusCompleted {
		if donation.Status == model.DonationStatusRefunded {
			return "", newValidationError("该捐赠已退款")
		}
		return "", newValidationError("当前状态不允许退款: " + string(donation.Status))
	}

	provider := r.providerFor(donation.TransactionId)
	if provider == nil {
		return "", &UnsupportedTransactionError{TransactionId: donation.TransactionId}
	}

	refundId, err := provider.Refund(ctx, donation.TransactionId)
	if err != nil {
		return "", err
	}

	meta := donation.Metadata.Data()
	meta.Refund = &model.RefundMeta{
		RefundId:   refundId,
		RefundedAt: time.Now(),
	}

	res := r.db.Model(&model.Donation{}).
		Where("id = ? AND status = ?", donationId, model.DonationStatusCompleted).
		Updates(map[string]interface{}{
			"status":   model.DonationStatusRefunded,
			"metadata": datatypes.NewJSONType(meta),
		})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		// 渠道退款已成功但本地状态被并发改掉，记录下来供人工对账
		logger.Error("Refund %s for donation %d succeeded upstream but local transition lost the race",
			refundId, donationId)
		return refundId, ErrConflict
	}

	logger.Info("Refunded donation %d, refund id %s", donationId, refundId)
	return refundId, nil
}

// CancelSubscription 管理员取消订阅。先调渠道取消，再按订阅ID批量落状态：
// 一个订阅可能对应多条历史记录，不能只改单条
func (r *RefundLogic) CancelSubscription(ctx context.Context, subscriptionId string) error {
	if subscriptionId == "" {
		return newValidationError("订阅ID不能为空")
	}

	provider := r.providerFor(subscriptionId)
	if provider == nil {
		return &UnsupportedTransactionError{TransactionId: subscriptionId}
	}

	if err := provider.CancelSubscription(ctx, subscriptionId); err != nil {
		return err
	}

	return r.ApplySubscriptionCancelled(subscriptionId)
}

// ApplySubscriptionCancelled 订阅取消落库。
// 渠道主动推送的取消事件走这里，不再回调渠道
func (r *RefundLogic) ApplySubscriptionCancelled(subscriptionId string) error {
	res := r.db.Model(&model.Donation{}).
		Where("(subscription_id = ? OR transaction_id = ?) AND status IN ?",
			subscriptionId, subscriptionId,
			[]model.DonationStatus{model.DonationStatusPending, model.DonationStatusCompleted}).
		Update("status", model.DonationStatusCancelled)
	if res.Error != nil {
		return res.Error
	}

	// 停掉订阅登记，后续续费不再入账
	if err := r.db.Model(&model.PayArcSubscription{}).
		Where("subscription_id = ?", subscriptionId).
		Update("active", false).Error; err != nil {
		return err
	}

	logger.Info("Subscription %s cancelled, %d donations updated", subscriptionId, res.RowsAffected)
	return nil
}

// UpdateSubscriptionAmount 修改订阅扣款金额
func (r *RefundLogic) UpdateSubscriptionAmount(ctx context.Context, subscriptionId string, amount decimal.Decimal) error {
	if subscriptionId == "" {
		return newValidationError("订阅ID不能为空")
	}
	if !amount.GreaterThan(decimal.Zero) {
		return newValidationError("订阅金额必须大于0")
	}

	provider := r.providerFor(subscriptionId)
	if provider == nil {
		return &UnsupportedTransactionError{TransactionId: subscriptionId}
	}

	if err := provider.UpdateSubscriptionAmount(ctx, subscriptionId, amount); err != nil {
		return err
	}

	return r.db.Model(&model.PayArcSubscription{}).
		Where("subscription_id = ?", subscriptionId).
		Update("amount", amount).Error
}

// providerFor 按ID命名约定匹配渠道
func (r *RefundLogic) providerFor(id string) Provider {
	for _, p := range r.providers {
		if p.Supports(id) {
			return p
		}
	}
	return nil
}
