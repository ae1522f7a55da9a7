package logic

import (
	"github.com/blues/dcs/internal/model"
	"gorm.io/gorm"
)

// DonorLogic 捐赠人业务逻辑
type DonorLogic struct {
	db *gorm.DB
}

// NewDonorLogic 创建捐赠人业务逻辑
func NewDonorLogic(db *gorm.DB) *DonorLogic {
	return &DonorLogic{db: db}
}

// ResolveByEmail 按邮箱查找或创建捐赠人。邮箱是捐赠人的唯一标识；
// name仅在原记录没有姓名时补全，不会用空值覆盖已有姓名
func (d *DonorLogic) ResolveByEmail(email, name string) (*model.Donor, error) {
	if email == "" {
		return nil, nil
	}

	var donor model.Donor
	err := d.db.Where("email = ?", email).First(&donor).Error
	if err == nil {
		if name != "" && donor.Name == "" {
			if err := d.db.Model(&donor).Update("name", name).Error; err != nil {
				return nil, err
			}
			donor.Name = name
		}
		return &donor, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	donor = model.Donor{Email: email, Name: name}
	if err := d.db.Create(&donor).Error; err != nil {
		return nil, err
	}
	return &donor, nil
}

// GetDonor 获取捐赠人
func (d *DonorLogic) GetDonor(id int64) (*model.Donor, error) {
	var donor model.Donor
	if err := d.db.First(&donor, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "捐赠人", Id: formatId(id)}
		}
		return nil, err
	}
	return &donor, nil
}
