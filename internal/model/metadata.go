package model

import "time"

// Meta 按支付渠道区分的附加信息，按渠道只填对应的子结构
type Meta struct {
	Stripe *StripeMeta       `json:"stripe,omitempty"`
	PayPal *PayPalMeta       `json:"paypal,omitempty"`
	PayArc *PayArcMeta       `json:"payarc,omitempty"`
	GiveWP *GiveWPMeta       `json:"givewp,omitempty"`
	Refund *RefundMeta       `json:"refund,omitempty"`
	Extra  map[string]string `json:"extra,omitempty"` // 其他渠道的兜底字段
}

// StripeMeta Stripe渠道附加信息
type StripeMeta struct {
	SessionId       string `json:"session_id,omitempty"`
	PaymentIntentId string `json:"payment_intent_id,omitempty"`
	CustomerId      string `json:"customer_id,omitempty"`
	InvoiceId       string `json:"invoice_id,omitempty"`
	CardLast4       string `json:"card_last4,omitempty"`
}

// PayPalMeta PayPal渠道附加信息
type PayPalMeta struct {
	OrderId   string `json:"order_id,omitempty"`
	CaptureId string `json:"capture_id,omitempty"`
	PayerId   string `json:"payer_id,omitempty"`
}

// PayArcMeta PayArc渠道附加信息
type PayArcMeta struct {
	ChargeId   string `json:"charge_id,omitempty"`
	CustomerId string `json:"customer_id,omitempty"`
	CardLast4  string `json:"card_last4,omitempty"`
}

// GiveWPMeta GiveWP导入附加信息
type GiveWPMeta struct {
	GiveWPId string `json:"givewp_id,omitempty"`
	FormId   string `json:"form_id,omitempty"`
}

// RefundMeta 退款附加信息
type RefundMeta struct {
	RefundId   string    `json:"refund_id"`
	RefundedAt time.Time `json:"refunded_at"`
}
