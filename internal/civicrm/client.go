package civicrm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
)

// Client CiviCRM REST客户端，实现logic.CrmClient。
// 联系人以邮箱为唯一标识，与站内Donor的口径一致
type Client struct {
	cfg    config.CiviCRMConfig
	client *http.Client
}

// New 创建CiviCRM客户端
func New(cfg config.CiviCRMConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type restResponse struct {
	IsError      int             `json:"is_error"`
	ErrorMessage string          `json:"error_message"`
	Id           json.Number     `json:"id"`
	Count        int             `json:"count"`
	Values       json.RawMessage `json:"values"`
}

// FindContactByEmail 按邮箱查找联系人，未找到返回0
func (c *Client) FindContactByEmail(ctx context.Context, email string) (int64, error) {
	params, _ := json.Marshal(map[string]interface{}{
		"email":      email,
		"sequential": 1,
	})
	resp, err := c.call(ctx, "Contact", "get", string(params))
	if err != nil {
		return 0, err
	}
	if resp.Count == 0 {
		return 0, nil
	}

	var contacts []struct {
		ContactId json.Number `json:"contact_id"`
	}
	if err := json.Unmarshal(resp.Values, &contacts); err != nil || len(contacts) == 0 {
		return 0, nil
	}
	id, err := contacts[0].ContactId.Int64()
	if err != nil {
		return 0, nil
	}
	return id, nil
}

// CreateContact 创建联系人
func (c *Client) CreateContact(ctx context.Context, name, email string) (int64, error) {
	fields := map[string]interface{}{
		"contact_type": "Individual",
		"email":        email,
	}
	if name != "" {
		fields["display_name"] = name
	}
	params, _ := json.Marshal(fields)
	resp, err := c.call(ctx, "Contact", "create", string(params))
	if err != nil {
		return 0, err
	}
	return resp.Id.Int64()
}

// CreateContribution 创建贡献记录，trxn_id沿用站内交易ID便于两边对账
func (c *Client) CreateContribution(ctx context.Context, contactId int64, donation *model.Donation) (int64, error) {
	params, _ := json.Marshal(map[string]interface{}{
		"contact_id":     contactId,
		"total_amount":   donation.Amount.StringFixed(2),
		"financial_type": c.cfg.FinancialType,
		"trxn_id":        donation.TransactionId,
		"receive_date":   donation.CreatedAt.Format("2006-01-02 15:04:05"),
		"source":         donation.PaymentMethod,
	})
	resp, err := c.call(ctx, "Contribution", "create", string(params))
	if err != nil {
		return 0, err
	}
	return resp.Id.Int64()
}

// call 执行一次REST调用。远端业务错误归为永久失败，原样带出错误信息
func (c *Client) call(ctx context.Context, entity, action, paramsJSON string) (*restResponse, error) {
	form := url.Values{}
	form.Set("entity", entity)
	form.Set("action", action)
	form.Set("api_key", c.cfg.APIKey)
	form.Set("key", c.cfg.SiteKey)
	form.Set("json", paramsJSON)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/civicrm/extern/rest.php", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, &logic.ProviderError{Provider: "civicrm", Permanent: false, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden {
		return nil, &logic.ProviderError{Provider: "civicrm", Permanent: true,
			Err: errors.New("认证失败，请检查site key与api key")}
	}
	if httpResp.StatusCode >= 400 {
		return nil, &logic.ProviderError{Provider: "civicrm",
			Permanent: httpResp.StatusCode < 500,
			Err:       errors.New("HTTP " + httpResp.Status)}
	}

	var resp restResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &logic.ProviderError{Provider: "civicrm", Permanent: true, Err: err}
	}
	if resp.IsError != 0 {
		return nil, &logic.ProviderError{Provider: "civicrm", Permanent: true,
			Err: errors.New(resp.ErrorMessage)}
	}
	return &resp, nil
}
