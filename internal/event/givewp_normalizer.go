package event

import (
	"encoding/json"
	"strconv"

	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
)

// GiveWPNormalizer GiveWP插件导入回调解析器。
// 共享密钥校验在handler层完成，这里只做报文翻译
type GiveWPNormalizer struct{}

// NewGiveWPNormalizer 创建GiveWP解析器
func NewGiveWPNormalizer() *GiveWPNormalizer {
	return &GiveWPNormalizer{}
}

func (n *GiveWPNormalizer) Provider() string {
	return model.PaymentMethodGiveWP
}

type givewpPayload struct {
	GiveWPId   json.Number `json:"givewp_id"`
	FormId     json.Number `json:"form_id"`
	Amount     json.Number `json:"amount"`
	DonorName  string      `json:"donor_name"`
	DonorEmail string      `json:"donor_email"`
	CampaignId json.Number `json:"campaign_id"`
	Gateway    string      `json:"gateway"`
}

// Normalize 解析GiveWP导入报文。交易ID固定为givewp_<id>，
// 同一条GiveWP记录重复投递按该ID去重
func (n *GiveWPNormalizer) Normalize(payload []byte) (*PaymentEvent, error) {
	var body givewpPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, &logic.ValidationError{Message: "GiveWP报文解析失败: " + err.Error()}
	}
	if body.GiveWPId.String() == "" {
		return nil, &logic.ValidationError{Message: "GiveWP报文缺少givewp_id"}
	}

	amount, err := decimal.NewFromString(body.Amount.String())
	if err != nil {
		return nil, &logic.ValidationError{Message: "GiveWP金额格式不正确: " + body.Amount.String()}
	}

	transactionId := "givewp_" + body.GiveWPId.String()
	paymentMethod := model.PaymentMethodGiveWP
	if body.Gateway != "" {
		paymentMethod = model.PaymentMethodGiveWP + "_" + body.Gateway
	}

	ev := &PaymentEvent{
		Provider:      paymentMethod,
		EventId:       transactionId,
		Type:          EventTypePaymentCompleted,
		TransactionId: transactionId,
		Amount:        amount,
		Frequency:     model.FrequencyOnce,
		DonorName:     body.DonorName,
		DonorEmail:    body.DonorEmail,
		Meta: model.Meta{
			GiveWP: &model.GiveWPMeta{
				GiveWPId: body.GiveWPId.String(),
				FormId:   body.FormId.String(),
			},
		},
		Raw: payload,
	}
	if body.CampaignId.String() != "" {
		if id, err := strconv.ParseInt(body.CampaignId.String(), 10, 64); err == nil {
			ev.CampaignId = id
		}
	}
	return ev, nil
}
