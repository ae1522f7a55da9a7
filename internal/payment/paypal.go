package payment

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
)

// PayPalClient PayPal渠道客户端
type PayPalClient struct {
	cfg    config.PayPalConfig
	client *http.Client
}

// NewPayPalClient 创建PayPal客户端
func NewPayPalClient(cfg config.PayPalConfig) *PayPalClient {
	return &PayPalClient{
		cfg:    cfg,
		client: newHTTPClient(),
	}
}

func (c *PayPalClient) Name() string {
	return model.PaymentMethodPayPal
}

// PayPal的capture ID是17位大写字母数字，订阅号以I-开头
var paypalCaptureId = regexp.MustCompile(`^[A-Z0-9]{17}$`)

func (c *PayPalClient) Supports(id string) bool {
	return strings.HasPrefix(id, "I-") || paypalCaptureId.MatchString(id)
}

type paypalRefund struct {
	Id string `json:"id"`
}

// Refund 按capture号退款
func (c *PayPalClient) Refund(ctx context.Context, transactionId string) (string, error) {
	req, err := http.NewRequest(http.MethodPost,
		c.cfg.BaseURL+"/v2/payments/captures/"+transactionId+"/refund",
		strings.NewReader("{}"))
	if err != nil {
		return "", err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	var refund paypalRefund
	if err := doRequest(ctx, c.client, c.Name(), req, &refund); err != nil {
		return "", err
	}
	return refund.Id, nil
}

// CancelSubscription 取消订阅
func (c *PayPalClient) CancelSubscription(ctx context.Context, subscriptionId string) error {
	body := `{"reason":"Cancelled by administrator"}`
	req, err := http.NewRequest(http.MethodPost,
		c.cfg.BaseURL+"/v1/billing/subscriptions/"+subscriptionId+"/cancel",
		strings.NewReader(body))
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	return doRequest(ctx, c.client, c.Name(), req, nil)
}

// UpdateSubscriptionAmount 修改订阅扣款金额
func (c *PayPalClient) UpdateSubscriptionAmount(ctx context.Context, subscriptionId string, amount decimal.Decimal) error {
	body := `{"plan":{"billing_cycles":[{"sequence":1,"pricing_scheme":{"fixed_price":{"value":"` +
		amount.StringFixed(2) + `","currency_code":"USD"}}}]}}`
	req, err := http.NewRequest(http.MethodPost,
		c.cfg.BaseURL+"/v1/billing/subscriptions/"+subscriptionId+"/revise",
		strings.NewReader(body))
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	return doRequest(ctx, c.client, c.Name(), req, nil)
}

func (c *PayPalClient) authorize(req *http.Request) {
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
}
