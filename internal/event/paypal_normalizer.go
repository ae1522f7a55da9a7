package event

import (
	"encoding/json"
	"strconv"

	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
)

// PayPalNormalizer PayPal回调解析器
type PayPalNormalizer struct{}

// NewPayPalNormalizer 创建PayPal解析器
func NewPayPalNormalizer() *PayPalNormalizer {
	return &PayPalNormalizer{}
}

func (n *PayPalNormalizer) Provider() string {
	return model.PaymentMethodPayPal
}

type paypalEnvelope struct {
	Id        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

type paypalCapture struct {
	Id     string `json:"id"`
	Amount struct {
		Value        string `json:"value"`
		CurrencyCode string `json:"currency_code"`
	} `json:"amount"`
	CustomId string `json:"custom_id"` // 发起支付时写入的活动ID
	Payer    struct {
		EmailAddress string `json:"email_address"`
		PayerId      string `json:"payer_id"`
		Name         struct {
			GivenName string `json:"given_name"`
			Surname   string `json:"surname"`
		} `json:"name"`
	} `json:"payer"`
	SupplementaryData struct {
		RelatedIds struct {
			OrderId string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type paypalSubscription struct {
	Id string `json:"id"`
}

type paypalSale struct {
	Id                 string `json:"id"`
	BillingAgreementId string `json:"billing_agreement_id"`
	Amount             struct {
		Total string `json:"total"`
	} `json:"amount"`
}

// Normalize 解析PayPal事件。支持PAYMENT.CAPTURE.COMPLETED、
// PAYMENT.SALE.COMPLETED（订阅续费走sale事件）、
// BILLING.SUBSCRIPTION.CANCELLED，其余忽略
func (n *PayPalNormalizer) Normalize(payload []byte) (*PaymentEvent, error) {
	var envelope paypalEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, &logic.ValidationError{Message: "PayPal事件报文解析失败: " + err.Error()}
	}
	if envelope.Id == "" {
		return nil, &logic.ValidationError{Message: "PayPal事件缺少事件ID"}
	}

	switch envelope.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		return n.normalizeCapture(&envelope, payload)
	case "PAYMENT.SALE.COMPLETED":
		return n.normalizeSale(&envelope, payload)
	case "BILLING.SUBSCRIPTION.CANCELLED":
		return n.normalizeCancellation(&envelope, payload)
	default:
		return nil, nil
	}
}

func (n *PayPalNormalizer) normalizeCapture(envelope *paypalEnvelope, payload []byte) (*PaymentEvent, error) {
	var capture paypalCapture
	if err := json.Unmarshal(envelope.Resource, &capture); err != nil {
		return nil, &logic.ValidationError{Message: "PayPal支付数据解析失败: " + err.Error()}
	}
	if capture.Id == "" {
		return nil, &logic.ValidationError{Message: "PayPal支付缺少ID"}
	}

	amount, err := decimal.NewFromString(capture.Amount.Value)
	if err != nil {
		return nil, &logic.ValidationError{Message: "PayPal金额格式不正确: " + capture.Amount.Value}
	}

	name := capture.Payer.Name.GivenName
	if capture.Payer.Name.Surname != "" {
		if name != "" {
			name += " "
		}
		name += capture.Payer.Name.Surname
	}

	ev := &PaymentEvent{
		Provider:      model.PaymentMethodPayPal,
		EventId:       envelope.Id,
		Type:          EventTypePaymentCompleted,
		TransactionId: capture.Id,
		Amount:        amount,
		Frequency:     model.FrequencyOnce,
		DonorName:     name,
		DonorEmail:    capture.Payer.EmailAddress,
		Meta: model.Meta{
			PayPal: &model.PayPalMeta{
				CaptureId: capture.Id,
				OrderId:   capture.SupplementaryData.RelatedIds.OrderId,
				PayerId:   capture.Payer.PayerId,
			},
		},
		Raw: payload,
	}
	if capture.CustomId != "" {
		if id, err := strconv.ParseInt(capture.CustomId, 10, 64); err == nil {
			ev.CampaignId = id
		}
	}
	return ev, nil
}

func (n *PayPalNormalizer) normalizeSale(envelope *paypalEnvelope, payload []byte) (*PaymentEvent, error) {
	var sale paypalSale
	if err := json.Unmarshal(envelope.Resource, &sale); err != nil {
		return nil, &logic.ValidationError{Message: "PayPal续费数据解析失败: " + err.Error()}
	}
	if sale.Id == "" {
		return nil, &logic.ValidationError{Message: "PayPal续费缺少ID"}
	}
	if sale.BillingAgreementId == "" {
		// 没有订阅号的sale是单次支付的另一种投递，capture事件已覆盖
		return nil, nil
	}

	amount, err := decimal.NewFromString(sale.Amount.Total)
	if err != nil {
		return nil, &logic.ValidationError{Message: "PayPal金额格式不正确: " + sale.Amount.Total}
	}

	return &PaymentEvent{
		Provider:       model.PaymentMethodPayPal,
		EventId:        envelope.Id,
		Type:           EventTypeRenewal,
		TransactionId:  sale.Id,
		SubscriptionId: sale.BillingAgreementId,
		Amount:         amount,
		Frequency:      model.FrequencyMonthly,
		Meta: model.Meta{
			PayPal: &model.PayPalMeta{CaptureId: sale.Id},
		},
		Raw: payload,
	}, nil
}

func (n *PayPalNormalizer) normalizeCancellation(envelope *paypalEnvelope, payload []byte) (*PaymentEvent, error) {
	var sub paypalSubscription
	if err := json.Unmarshal(envelope.Resource, &sub); err != nil {
		return nil, &logic.ValidationError{Message: "PayPal订阅数据解析失败: " + err.Error()}
	}
	if sub.Id == "" {
		return nil, &logic.ValidationError{Message: "PayPal订阅缺少ID"}
	}

	return &PaymentEvent{
		Provider:       model.PaymentMethodPayPal,
		EventId:        envelope.Id,
		Type:           EventTypeSubscriptionCancelled,
		SubscriptionId: sub.Id,
		Raw:            payload,
	}, nil
}
