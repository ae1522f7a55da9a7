package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Campaign 募捐活动
type Campaign struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title       string `json:"title" gorm:"not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;not null"`
	Description string `json:"description" gorm:"type:text"`

	GoalAmount decimal.Decimal `json:"goal_amount" gorm:"type:decimal(12,2);default:0"`

	// 配捐设置
	MatchingEnabled    bool `json:"matching_enabled"`
	MatchingMultiplier int  `json:"matching_multiplier" gorm:"default:1"` // 整数倍，>=1

	// 已筹金额缓存，由定时任务刷新；汇总接口实时计算
	RaisedAmount decimal.Decimal `json:"raised_amount" gorm:"type:decimal(12,2);default:0"`

	Active bool `json:"active" gorm:"default:true"`
}

// TableName 自定义表名
func (Campaign) TableName() string {
	return "campaign"
}
