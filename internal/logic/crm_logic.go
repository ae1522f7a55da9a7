package logic

import (
	"context"

	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/model"
	"gorm.io/gorm"
)

// CrmClient CiviCRM客户端接口，由internal/civicrm实现
type CrmClient interface {
	// FindContactByEmail 按邮箱查找联系人，未找到返回0
	FindContactByEmail(ctx context.Context, email string) (int64, error)
	// CreateContact 创建联系人
	CreateContact(ctx context.Context, name, email string) (int64, error)
	// CreateContribution 创建贡献记录
	CreateContribution(ctx context.Context, contactId int64, donation *model.Donation) (int64, error)
}

// CrmLogic CiviCRM同步业务逻辑
type CrmLogic struct {
	db     *gorm.DB
	client CrmClient
}

// NewCrmLogic 创建CRM同步业务逻辑
func NewCrmLogic(db *gorm.DB, client CrmClient) *CrmLogic {
	return &CrmLogic{db: db, client: client}
}

// SyncResult 同步结果
type SyncResult struct {
	ContactId      int64 `json:"contact_id"`
	ContributionId int64 `json:"contribution_id"`
	AlreadySynced  bool  `json:"already_synced"`
}

// Sync 将捐赠同步到CiviCRM。已存储contribution id的记录直接返回，不再调用CRM。
// 联系人创建成功而贡献创建失败时，联系人ID先落库，下次重试复用而不是重复建人。
// 失败不自动重试，错误原样上抛
func (l *CrmLogic) Sync(ctx context.Context, donationId int64) (*SyncResult, error) {
	var donation model.Donation
	if err := l.db.First(&donation, donationId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "捐赠记录", Id: formatId(donationId)}
		}
		return nil, err
	}

	if donation.CivicrmContributionId != 0 {
		return &SyncResult{
			ContactId:      donation.CivicrmContactId,
			ContributionId: donation.CivicrmContributionId,
			AlreadySynced:  true,
		}, nil
	}

	if donation.DonorEmail == "" {
		return nil, newValidationError("捐赠人邮箱为空，无法同步到CRM")
	}

	contactId := donation.CivicrmContactId
	if contactId == 0 {
		var err error
		contactId, err = l.client.FindContactByEmail(ctx, donation.DonorEmail)
		if err != nil {
			return nil, err
		}
		if contactId == 0 {
			contactId, err = l.client.CreateContact(ctx, donation.DonorName, donation.DonorEmail)
			if err != nil {
				return nil, err
			}
		}
		// 联系人ID立即落库，贡献创建失败时重试不会重复建人
		if err := l.db.Model(&model.Donation{}).
			Where("id = ?", donation.Id).
			Update("civicrm_contact_id", contactId).Error; err != nil {
			return nil, err
		}
	}

	contributionId, err := l.client.CreateContribution(ctx, contactId, &donation)
	if err != nil {
		return nil, err
	}

	if err := l.db.Model(&model.Donation{}).
		Where("id = ?", donation.Id).
		Update("civicrm_contribution_id", contributionId).Error; err != nil {
		return nil, err
	}

	logger.Info("Synced donation %d to CiviCRM: contact %d, contribution %d",
		donationId, contactId, contributionId)

	return &SyncResult{
		ContactId:      contactId,
		ContributionId: contributionId,
	}, nil
}
