package model

import "time"

// Donor 捐赠人，以邮箱为唯一标识
type Donor struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email string `json:"email" gorm:"uniqueIndex;not null"`
	Name  string `json:"name"`
}

// TableName 自定义表名
func (Donor) TableName() string {
	return "donor"
}
