package payment

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
)

// StripeClient Stripe渠道客户端
type StripeClient struct {
	cfg    config.StripeConfig
	client *http.Client
}

// NewStripeClient 创建Stripe客户端
func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	return &StripeClient{
		cfg:    cfg,
		client: newHTTPClient(),
	}
}

func (c *StripeClient) Name() string {
	return model.PaymentMethodStripe
}

// Supports Stripe的ID命名约定：会话cs_、支付意向pi_、扣款ch_、订阅sub_、账单in_
func (c *StripeClient) Supports(id string) bool {
	for _, prefix := range []string{"cs_", "pi_", "ch_", "sub_", "in_"} {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

type stripeRefund struct {
	Id string `json:"id"`
}

type stripeSessionResp struct {
	PaymentIntent string `json:"payment_intent"`
}

// Refund 发起退款。存储的交易ID是会话ID时先查出支付意向再退款
func (c *StripeClient) Refund(ctx context.Context, transactionId string) (string, error) {
	paymentIntent := transactionId
	if strings.HasPrefix(transactionId, "cs_") {
		var session stripeSessionResp
		req, err := http.NewRequest(http.MethodGet, c.cfg.BaseURL+"/v1/checkout/sessions/"+transactionId, nil)
		if err != nil {
			return "", err
		}
		c.authorize(req)
		if err := doRequest(ctx, c.client, c.Name(), req, &session); err != nil {
			return "", err
		}
		if session.PaymentIntent == "" {
			return "", &logic.ProviderError{Provider: c.Name(), Permanent: true,
				Err: errNoPaymentIntent}
		}
		paymentIntent = session.PaymentIntent
	}

	form := url.Values{}
	if strings.HasPrefix(paymentIntent, "ch_") {
		form.Set("charge", paymentIntent)
	} else {
		form.Set("payment_intent", paymentIntent)
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL+"/v1/refunds", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var refund stripeRefund
	if err := doRequest(ctx, c.client, c.Name(), req, &refund); err != nil {
		return "", err
	}
	return refund.Id, nil
}

// CancelSubscription 取消订阅
func (c *StripeClient) CancelSubscription(ctx context.Context, subscriptionId string) error {
	req, err := http.NewRequest(http.MethodDelete, c.cfg.BaseURL+"/v1/subscriptions/"+subscriptionId, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	return doRequest(ctx, c.client, c.Name(), req, nil)
}

// UpdateSubscriptionAmount Stripe按价格对象计费，金额调整需要换价格，
// 本系统不维护Stripe价格对象，直接拒绝
func (c *StripeClient) UpdateSubscriptionAmount(ctx context.Context, subscriptionId string, amount decimal.Decimal) error {
	return &logic.ProviderError{Provider: c.Name(), Permanent: true, Err: errAmountNotAdjustable}
}

func (c *StripeClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
}
