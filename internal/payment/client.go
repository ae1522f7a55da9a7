package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blues/dcs/internal/logic"
)

// 渠道接口调用统一超时
const requestTimeout = 30 * time.Second

var (
	errNoPaymentIntent     = errors.New("会话未关联支付意向")
	errAmountNotAdjustable = errors.New("该渠道不支持直接调整订阅金额")
)

// newHTTPClient 创建带超时的HTTP客户端
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// doRequest 执行请求并把响应解析到out（out为nil时丢弃响应体）。
// 网络错误与5xx归为可重试的渠道错误，4xx归为永久失败
func doRequest(ctx context.Context, client *http.Client, provider string, req *http.Request, out interface{}) error {
	req = req.WithContext(ctx)
	resp, err := client.Do(req)
	if err != nil {
		return &logic.ProviderError{Provider: provider, Permanent: false, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &logic.ProviderError{Provider: provider, Permanent: false, Err: err}
	}

	if resp.StatusCode >= 400 {
		permanent := resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests
		return &logic.ProviderError{
			Provider:  provider,
			Permanent: permanent,
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return &logic.ProviderError{Provider: provider, Permanent: true, Err: fmt.Errorf("响应解析失败: %w", err)}
		}
	}
	return nil
}
