package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayArcSubscription 订阅记录，关联发起订阅的首笔捐赠
type PayArcSubscription struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SubscriptionId string `json:"subscription_id" gorm:"uniqueIndex;not null"`
	CustomerId     string `json:"customer_id" gorm:"index"`
	DonationId     int64  `json:"donation_id" gorm:"index"` // 首笔捐赠记录

	Amount decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Active bool            `json:"active" gorm:"default:true;index"`
}

// TableName 自定义表名
func (PayArcSubscription) TableName() string {
	return "payarc_subscription"
}
