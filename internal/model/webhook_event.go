package model

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent 支付渠道回调事件，入库后再处理以支持去重和重放
type WebhookEvent struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Provider        string `json:"provider" gorm:"not null;uniqueIndex:ux_webhook_event_provider_event,priority:1"`
	ProviderEventId string `json:"provider_event_id" gorm:"not null;uniqueIndex:ux_webhook_event_provider_event,priority:2"`
	EventType       string `json:"event_type" gorm:"index"`

	Payload datatypes.JSON `json:"payload"`

	Processed       bool       `json:"processed" gorm:"index"`
	ProcessingError string     `json:"processing_error" gorm:"type:text"`
	ProcessedAt     *time.Time `json:"processed_at"`
}

// TableName 自定义表名
func (WebhookEvent) TableName() string {
	return "webhook_event"
}
