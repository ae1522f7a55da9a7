package event

import (
	"encoding/json"
	"strconv"

	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
)

// PayArcNormalizer PayArc回调解析器
type PayArcNormalizer struct{}

// NewPayArcNormalizer 创建PayArc解析器
func NewPayArcNormalizer() *PayArcNormalizer {
	return &PayArcNormalizer{}
}

func (n *PayArcNormalizer) Provider() string {
	return model.PaymentMethodPayArc
}

type payarcEnvelope struct {
	Id   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type payarcCharge struct {
	Id             string `json:"id"`
	Amount         int64  `json:"amount"` // 分
	CustomerId     string `json:"customer_id"`
	SubscriptionId string `json:"subscription_id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	CampaignId     string `json:"campaign_id"`
	Card           struct {
		Last4 string `json:"last4"`
	} `json:"card"`
}

type payarcSubscriptionObject struct {
	Id string `json:"id"`
}

// Normalize 解析PayArc事件。charge.succeeded为单次支付，
// subscription.charge.succeeded为续费，subscription.cancelled为取消
func (n *PayArcNormalizer) Normalize(payload []byte) (*PaymentEvent, error) {
	var envelope payarcEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, &logic.ValidationError{Message: "PayArc事件报文解析失败: " + err.Error()}
	}
	if envelope.Id == "" {
		return nil, &logic.ValidationError{Message: "PayArc事件缺少事件ID"}
	}

	switch envelope.Type {
	case "charge.succeeded":
		return n.normalizeCharge(&envelope, payload, EventTypePaymentCompleted)
	case "subscription.charge.succeeded":
		return n.normalizeCharge(&envelope, payload, EventTypeRenewal)
	case "subscription.cancelled":
		return n.normalizeCancellation(&envelope, payload)
	default:
		return nil, nil
	}
}

func (n *PayArcNormalizer) normalizeCharge(envelope *payarcEnvelope, payload []byte, eventType EventType) (*PaymentEvent, error) {
	var charge payarcCharge
	if err := json.Unmarshal(envelope.Data.Object, &charge); err != nil {
		return nil, &logic.ValidationError{Message: "PayArc扣款数据解析失败: " + err.Error()}
	}
	if charge.Id == "" {
		return nil, &logic.ValidationError{Message: "PayArc扣款缺少ID"}
	}

	frequency := model.FrequencyOnce
	if eventType == EventTypeRenewal || charge.SubscriptionId != "" {
		frequency = model.FrequencyMonthly
	}

	ev := &PaymentEvent{
		Provider:       model.PaymentMethodPayArc,
		EventId:        envelope.Id,
		Type:           eventType,
		TransactionId:  charge.Id,
		SubscriptionId: charge.SubscriptionId,
		CustomerId:     charge.CustomerId,
		Amount:         amountFromCents(charge.Amount),
		Frequency:      frequency,
		DonorName:      charge.Name,
		DonorEmail:     charge.Email,
		Meta: model.Meta{
			PayArc: &model.PayArcMeta{
				ChargeId:   charge.Id,
				CustomerId: charge.CustomerId,
				CardLast4:  charge.Card.Last4,
			},
		},
		Raw: payload,
	}
	if charge.CampaignId != "" {
		if id, err := strconv.ParseInt(charge.CampaignId, 10, 64); err == nil {
			ev.CampaignId = id
		}
	}
	return ev, nil
}

func (n *PayArcNormalizer) normalizeCancellation(envelope *payarcEnvelope, payload []byte) (*PaymentEvent, error) {
	var sub payarcSubscriptionObject
	if err := json.Unmarshal(envelope.Data.Object, &sub); err != nil {
		return nil, &logic.ValidationError{Message: "PayArc订阅数据解析失败: " + err.Error()}
	}
	if sub.Id == "" {
		return nil, &logic.ValidationError{Message: "PayArc订阅缺少ID"}
	}

	return &PaymentEvent{
		Provider:       model.PaymentMethodPayArc,
		EventId:        envelope.Id,
		Type:           EventTypeSubscriptionCancelled,
		SubscriptionId: sub.Id,
		Raw:            payload,
	}, nil
}
