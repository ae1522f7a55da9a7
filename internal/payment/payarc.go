package payment

import (
	"context"
	"net/http"
	"strings"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
)

// PayArcClient PayArc渠道客户端
type PayArcClient struct {
	cfg    config.PayArcConfig
	client *http.Client
}

// NewPayArcClient 创建PayArc客户端
func NewPayArcClient(cfg config.PayArcConfig) *PayArcClient {
	return &PayArcClient{
		cfg:    cfg,
		client: newHTTPClient(),
	}
}

func (c *PayArcClient) Name() string {
	return model.PaymentMethodPayArc
}

// Supports PayArc的ID命名约定：扣款pch_、订阅psub_
func (c *PayArcClient) Supports(id string) bool {
	return strings.HasPrefix(id, "pch_") || strings.HasPrefix(id, "psub_")
}

type payarcRefund struct {
	Data struct {
		Id string `json:"id"`
	} `json:"data"`
}

// Refund 发起退款
func (c *PayArcClient) Refund(ctx context.Context, transactionId string) (string, error) {
	req, err := http.NewRequest(http.MethodPost,
		c.cfg.BaseURL+"/v1/charges/"+transactionId+"/refunds", nil)
	if err != nil {
		return "", err
	}
	c.authorize(req)

	var refund payarcRefund
	if err := doRequest(ctx, c.client, c.Name(), req, &refund); err != nil {
		return "", err
	}
	return refund.Data.Id, nil
}

// CancelSubscription 取消订阅
func (c *PayArcClient) CancelSubscription(ctx context.Context, subscriptionId string) error {
	req, err := http.NewRequest(http.MethodPatch,
		c.cfg.BaseURL+"/v1/subscriptions/"+subscriptionId+"/cancel", nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	return doRequest(ctx, c.client, c.Name(), req, nil)
}

// UpdateSubscriptionAmount 修改订阅扣款金额，PayArc以分为单位
func (c *PayArcClient) UpdateSubscriptionAmount(ctx context.Context, subscriptionId string, amount decimal.Decimal) error {
	cents := amount.Mul(decimal.NewFromInt(100)).IntPart()
	body := `{"amount":` + decimal.NewFromInt(cents).String() + `}`
	req, err := http.NewRequest(http.MethodPatch,
		c.cfg.BaseURL+"/v1/subscriptions/"+subscriptionId,
		strings.NewReader(body))
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	return doRequest(ctx, c.client, c.Name(), req, nil)
}

func (c *PayArcClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
}
