package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Donation 捐赠记录，一条记录对应一次支付事件
type Donation struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Frequency Frequency       `json:"frequency" gorm:"default:'once'"`

	// 捐赠人信息（pending记录可能为空，确认时补全）
	DonorName       string `json:"donor_name"`
	DonorEmail      string `json:"donor_email" gorm:"index"`
	DonorId         int64  `json:"donor_id" gorm:"index"`
	DisplayName     string `json:"display_name"`
	DonationMessage string `json:"donation_message" gorm:"type:text"`

	// 支付渠道信息
	PaymentMethod  string `json:"payment_method" gorm:"index"`
	TransactionId  string `json:"transaction_id" gorm:"uniqueIndex;not null"` // 幂等键
	SubscriptionId string `json:"subscription_id" gorm:"index"`               // 订阅ID（月捐）

	Status DonationStatus `json:"status" gorm:"default:'pending';index"`

	// 配捐信息
	IsMatched         bool  `json:"is_matched"`
	MatchedMultiplier int   `json:"matched_multiplier" gorm:"default:1"` // 创建时快照的倍数
	CampaignId        int64 `json:"campaign_id" gorm:"index"`

	// 未能关联订阅的续费记录，需人工复核
	NeedsReview bool `json:"needs_review" gorm:"index"`

	// CiviCRM同步标记
	CivicrmContactId      int64 `json:"civicrm_contact_id"`
	CivicrmContributionId int64 `json:"civicrm_contribution_id"`

	Metadata datatypes.JSONType[Meta] `json:"metadata"`
}

// TableName 自定义表名
func (Donation) TableName() string {
	return "donation"
}

// DonationStatus 捐赠状态
type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "pending"   // 待支付
	DonationStatusCompleted DonationStatus = "completed" // 已完成
	DonationStatusRefunded  DonationStatus = "refunded"  // 已退款
	DonationStatusCancelled DonationStatus = "cancelled" // 已取消
	DonationStatusDeleted   DonationStatus = "deleted"   // 已删除（软删除，终态）
)

// Frequency 捐赠频率
type Frequency string

const (
	FrequencyOnce    Frequency = "once"    // 单次
	FrequencyMonthly Frequency = "monthly" // 月捐
)

// 支付渠道标识
const (
	PaymentMethodStripe = "stripe"
	PaymentMethodPayPal = "paypal"
	PaymentMethodPayArc = "payarc"
	PaymentMethodManual = "manual"
	PaymentMethodACH    = "ach"
	PaymentMethodGiveWP = "givewp"
)

// IsSettled 是否已结清（completed/refunded/cancelled）
func (s DonationStatus) IsSettled() bool {
	return s == DonationStatusCompleted || s == DonationStatusRefunded || s == DonationStatusCancelled
}

// IsGiveWPTransaction 判断交易ID是否来自GiveWP导入
func IsGiveWPTransaction(transactionId string) bool {
	return strings.HasPrefix(transactionId, "givewp_")
}
