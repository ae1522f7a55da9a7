package event

import (
	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
)

// EventType 规范化后的事件类型，各渠道的事件名都折算到这三种
type EventType string

const (
	EventTypePaymentCompleted      EventType = "payment.completed"      // 单次支付成功
	EventTypeRenewal               EventType = "renewal"                // 月捐续费扣款成功
	EventTypeSubscriptionCancelled EventType = "subscription.cancelled" // 订阅取消
)

// PaymentEvent 规范化后的支付事件，各渠道的Normalizer负责把
// 原始回调翻译成这个结构，对账引擎只消费这一种类型
type PaymentEvent struct {
	Provider string // 渠道标识: stripe/paypal/payarc/givewp
	EventId  string // 渠道事件ID，去重用
	Type     EventType

	TransactionId  string // 本次扣款的唯一交易ID（幂等键）
	SubscriptionId string
	CustomerId     string

	Amount    decimal.Decimal
	Frequency model.Frequency

	DonorName  string
	DonorEmail string

	DisplayName     string
	DonationMessage string
	CampaignId      int64

	Meta model.Meta // 渠道附加信息

	Raw []byte // 原始报文，入库存证
}

// Normalizer 渠道回调解析器。
// 解析失败返回*logic.ValidationError表示报文不可恢复，
// 不关心的事件类型返回(nil, nil)
type Normalizer interface {
	Provider() string
	Normalize(payload []byte) (*PaymentEvent, error)
}

// Outcome 事件处理结果
type Outcome string

const (
	OutcomeCreated   Outcome = "created"   // 新建了completed记录
	OutcomeCompleted Outcome = "completed" // pending记录迁移到completed
	OutcomeDuplicate Outcome = "duplicate" // 重复投递，未做变更
	OutcomeIgnored   Outcome = "ignored"   // 不关心的事件
	OutcomeCancelled Outcome = "cancelled" // 订阅取消已落库
)

// Result 事件处理结果
type Result struct {
	Outcome  Outcome
	Donation *model.Donation
}
