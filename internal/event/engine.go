package event

import (
	"time"

	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Mailer 邮件协作方。发送失败只记日志，绝不回滚状态迁移
type Mailer interface {
	SendDonorReceipt(donation *model.Donation) error
	SendAdminNotification(donation *model.Donation) error
}

// Engine 对账引擎：消费规范化支付事件，驱动捐赠状态机。
// 同一渠道事件重复投递必须幂等，邮件只在真正发生迁移的那次发送
type Engine struct {
	db            *gorm.DB
	donationLogic *logic.DonationLogic
	renewalLogic  *logic.RenewalLogic
	refundLogic   *logic.RefundLogic
	mailer        Mailer
}

// NewEngine 创建对账引擎
func NewEngine(db *gorm.DB, donationLogic *logic.DonationLogic, renewalLogic *logic.RenewalLogic, refundLogic *logic.RefundLogic, mailer Mailer) *Engine {
	return &Engine{
		db:            db,
		donationLogic: donationLogic,
		renewalLogic:  renewalLogic,
		refundLogic:   refundLogic,
		mailer:        mailer,
	}
}

// Handle 处理一个规范化支付事件。
// 事件先入库存证再处理，按provider+event_id去重；
// 处理失败的事件保留在表里由重放任务重试
func (e *Engine) Handle(ev *PaymentEvent) (*Result, error) {
	if ev == nil {
		return &Result{Outcome: OutcomeIgnored}, nil
	}
	if ev.Provider == "" || ev.EventId == "" {
		return nil, &logic.ValidationError{Message: "事件缺少渠道或事件ID"}
	}

	record, alreadyProcessed, err := e.recordEvent(ev)
	if err != nil {
		return nil, err
	}
	if alreadyProcessed {
		return e.duplicateResult(ev)
	}

	result, err := e.process(ev)
	if err != nil {
		e.markFailed(record, err)
		return nil, err
	}

	e.markProcessed(record)
	return result, nil
}

// recordEvent 事件入库存证。返回已有记录且已处理时调用方直接走重复分支
func (e *Engine) recordEvent(ev *PaymentEvent) (*model.WebhookEvent, bool, error) {
	var existing model.WebhookEvent
	err := e.db.Where("provider = ? AND provider_event_id = ?", ev.Provider, ev.EventId).
		First(&existing).Error
	if err == nil {
		return &existing, existing.Processed, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	record := model.WebhookEvent{
		Provider:        ev.Provider,
		ProviderEventId: ev.EventId,
		EventType:       string(ev.Type),
		Payload:         datatypes.JSON(ev.Raw),
	}
	if err := e.db.Create(&record).Error; err != nil {
		// 并发投递同时落库时唯一索引兜底，重查一次
		if err := e.db.Where("provider = ? AND provider_event_id = ?", ev.Provider, ev.EventId).
			First(&existing).Error; err == nil {
			return &existing, existing.Processed, nil
		}
		return nil, false, err
	}
	return &record, false, nil
}

// process 按事件类型分发
func (e *Engine) process(ev *PaymentEvent) (*Result, error) {
	switch ev.Type {
	case EventTypePaymentCompleted:
		return e.processPayment(ev)
	case EventTypeRenewal:
		return e.processRenewal(ev)
	case EventTypeSubscriptionCancelled:
		return e.processCancellation(ev)
	default:
		return &Result{Outcome: OutcomeIgnored}, nil
	}
}

// processPayment 单次支付成功：定位或创建记录，真正发生迁移时发邮件
func (e *Engine) processPayment(ev *PaymentEvent) (*Result, error) {
	candidate := &model.Donation{
		TransactionId:   ev.TransactionId,
		SubscriptionId:  ev.SubscriptionId,
		Amount:          ev.Amount,
		Frequency:       ev.Frequency,
		PaymentMethod:   ev.Provider,
		DonorName:       ev.DonorName,
		DonorEmail:      ev.DonorEmail,
		DisplayName:     ev.DisplayName,
		DonationMessage: ev.DonationMessage,
		CampaignId:      ev.CampaignId,
		Metadata:        datatypes.NewJSONType(ev.Meta),
	}

	result, err := e.donationLogic.ResolveOrCreate(candidate, model.DonationStatusCompleted)
	if err != nil {
		return nil, err
	}
	if result.WasExisting {
		return &Result{Outcome: OutcomeDuplicate, Donation: result.Donation}, nil
	}

	// 订阅建立时登记，供续费和取消定位
	if ev.SubscriptionId != "" {
		if err := e.renewalLogic.RegisterSubscription(ev.SubscriptionId, ev.CustomerId, result.Donation.Id, ev.Amount); err != nil {
			logger.Error("Failed to register subscription %s: %v", ev.SubscriptionId, err)
		}
	}

	// GiveWP导入的是已在源站处理过的历史记录，不再发邮件
	if !model.IsGiveWPTransaction(result.Donation.TransactionId) {
		e.sendNotifications(result.Donation)
	}

	outcome := OutcomeCompleted
	if result.Created {
		outcome = OutcomeCreated
	}
	return &Result{Outcome: outcome, Donation: result.Donation}, nil
}

// processRenewal 续费扣款成功：新建记录，不发邮件（见状态机定义）
func (e *Engine) processRenewal(ev *PaymentEvent) (*Result, error) {
	result, err := e.renewalLogic.RecordRenewal(
		ev.TransactionId, ev.SubscriptionId, ev.CustomerId, ev.Provider, ev.Amount)
	if err != nil {
		return nil, err
	}
	if result.WasExisting {
		return &Result{Outcome: OutcomeDuplicate, Donation: result.Donation}, nil
	}
	return &Result{Outcome: OutcomeCreated, Donation: result.Donation}, nil
}

// processCancellation 渠道推送的订阅取消，只落库不回调渠道
func (e *Engine) processCancellation(ev *PaymentEvent) (*Result, error) {
	if ev.SubscriptionId == "" {
		return nil, &logic.ValidationError{Message: "取消事件缺少订阅ID"}
	}
	if err := e.refundLogic.ApplySubscriptionCancelled(ev.SubscriptionId); err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeCancelled}, nil
}

// sendNotifications 发送捐赠回执与管理员通知，失败只记日志
func (e *Engine) sendNotifications(donation *model.Donation) {
	if e.mailer == nil {
		return
	}
	if donation.DonorEmail != "" {
		if err := e.mailer.SendDonorReceipt(donation); err != nil {
			logger.Error("Failed to send donor receipt for donation %d: %v", donation.Id, err)
		}
	}
	if err := e.mailer.SendAdminNotification(donation); err != nil {
		logger.Error("Failed to send admin notification for donation %d: %v", donation.Id, err)
	}
}

// duplicateResult 重复事件的响应，带上既有捐赠记录便于调用方引用
func (e *Engine) duplicateResult(ev *PaymentEvent) (*Result, error) {
	result := &Result{Outcome: OutcomeDuplicate}
	if ev.TransactionId != "" {
		var donation model.Donation
		if err := e.db.Where("transaction_id = ?", ev.TransactionId).First(&donation).Error; err == nil {
			result.Donation = &donation
		}
	}
	return result, nil
}

func (e *Engine) markProcessed(record *model.WebhookEvent) {
	now := time.Now()
	if err := e.db.Model(record).Updates(map[string]interface{}{
		"processed":        true,
		"processing_error": "",
		"processed_at":     &now,
	}).Error; err != nil {
		logger.Error("Failed to mark webhook event %d processed: %v", record.Id, err)
	}
}

func (e *Engine) markFailed(record *model.WebhookEvent, procErr error) {
	if err := e.db.Model(record).Update("processing_error", procErr.Error()).Error; err != nil {
		logger.Error("Failed to record webhook event %d error: %v", record.Id, err)
	}
}
