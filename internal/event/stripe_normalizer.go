package event

import (
	"encoding/json"
	"strconv"

	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
)

// StripeNormalizer Stripe回调解析器
type StripeNormalizer struct{}

// NewStripeNormalizer 创建Stripe解析器
func NewStripeNormalizer() *StripeNormalizer {
	return &StripeNormalizer{}
}

func (n *StripeNormalizer) Provider() string {
	return model.PaymentMethodStripe
}

type stripeEnvelope struct {
	Id   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeSession struct {
	Id              string `json:"id"`
	PaymentIntent   string `json:"payment_intent"`
	Customer        string `json:"customer"`
	Subscription    string `json:"subscription"`
	AmountTotal     int64  `json:"amount_total"`
	Mode            string `json:"mode"`
	CustomerDetails struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

type stripeInvoice struct {
	Id           string `json:"id"`
	Subscription string `json:"subscription"`
	Customer     string `json:"customer"`
	AmountPaid   int64  `json:"amount_paid"`
}

type stripeSubscription struct {
	Id string `json:"id"`
}

// Normalize 解析Stripe事件。支持checkout.session.completed、
// invoice.payment_succeeded（续费）、customer.subscription.deleted（取消），
// 其余事件忽略
func (n *StripeNormalizer) Normalize(payload []byte) (*PaymentEvent, error) {
	var envelope stripeEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, &logic.ValidationError{Message: "Stripe事件报文解析失败: " + err.Error()}
	}
	if envelope.Id == "" {
		return nil, &logic.ValidationError{Message: "Stripe事件缺少事件ID"}
	}

	switch envelope.Type {
	case "checkout.session.completed":
		return n.normalizeSession(&envelope, payload)
	case "invoice.payment_succeeded":
		return n.normalizeInvoice(&envelope, payload)
	case "customer.subscription.deleted":
		return n.normalizeCancellation(&envelope, payload)
	default:
		return nil, nil
	}
}

func (n *StripeNormalizer) normalizeSession(envelope *stripeEnvelope, payload []byte) (*PaymentEvent, error) {
	var session stripeSession
	if err := json.Unmarshal(envelope.Data.Object, &session); err != nil {
		return nil, &logic.ValidationError{Message: "Stripe会话数据解析失败: " + err.Error()}
	}
	if session.Id == "" {
		return nil, &logic.ValidationError{Message: "Stripe会话缺少ID"}
	}

	ev := &PaymentEvent{
		Provider:       model.PaymentMethodStripe,
		EventId:        envelope.Id,
		Type:           EventTypePaymentCompleted,
		TransactionId:  session.Id,
		SubscriptionId: session.Subscription,
		CustomerId:     session.Customer,
		Amount:         amountFromCents(session.AmountTotal),
		Frequency:      model.FrequencyOnce,
		DonorName:      session.CustomerDetails.Name,
		DonorEmail:     session.CustomerDetails.Email,
		Meta: model.Meta{
			Stripe: &model.StripeMeta{
				SessionId:       session.Id,
				PaymentIntentId: session.PaymentIntent,
				CustomerId:      session.Customer,
			},
		},
		Raw: payload,
	}
	if session.Mode == "subscription" {
		ev.Frequency = model.FrequencyMonthly
	}
	applyStripeMetadata(ev, session.Metadata)
	return ev, nil
}

func (n *StripeNormalizer) normalizeInvoice(envelope *stripeEnvelope, payload []byte) (*PaymentEvent, error) {
	var invoice stripeInvoice
	if err := json.Unmarshal(envelope.Data.Object, &invoice); err != nil {
		return nil, &logic.ValidationError{Message: "Stripe账单数据解析失败: " + err.Error()}
	}
	if invoice.Id == "" {
		return nil, &logic.ValidationError{Message: "Stripe账单缺少ID"}
	}

	return &PaymentEvent{
		Provider:       model.PaymentMethodStripe,
		EventId:        envelope.Id,
		Type:           EventTypeRenewal,
		TransactionId:  invoice.Id,
		SubscriptionId: invoice.Subscription,
		CustomerId:     invoice.Customer,
		Amount:         amountFromCents(invoice.AmountPaid),
		Frequency:      model.FrequencyMonthly,
		Meta: model.Meta{
			Stripe: &model.StripeMeta{
				InvoiceId:  invoice.Id,
				CustomerId: invoice.Customer,
			},
		},
		Raw: payload,
	}, nil
}

func (n *StripeNormalizer) normalizeCancellation(envelope *stripeEnvelope, payload []byte) (*PaymentEvent, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(envelope.Data.Object, &sub); err != nil {
		return nil, &logic.ValidationError{Message: "Stripe订阅数据解析失败: " + err.Error()}
	}
	if sub.Id == "" {
		return nil, &logic.ValidationError{Message: "Stripe订阅缺少ID"}
	}

	return &PaymentEvent{
		Provider:       model.PaymentMethodStripe,
		EventId:        envelope.Id,
		Type:           EventTypeSubscriptionCancelled,
		SubscriptionId: sub.Id,
		Raw:            payload,
	}, nil
}

// applyStripeMetadata checkout元数据里携带的站内字段
func applyStripeMetadata(ev *PaymentEvent, metadata map[string]string) {
	if metadata == nil {
		return
	}
	if v, ok := metadata["campaign_id"]; ok {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			ev.CampaignId = id
		}
	}
	if v, ok := metadata["display_name"]; ok {
		ev.DisplayName = v
	}
	if v, ok := metadata["message"]; ok {
		ev.DonationMessage = v
	}
}

// amountFromCents 渠道金额以分为单位，折算到元
func amountFromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}
