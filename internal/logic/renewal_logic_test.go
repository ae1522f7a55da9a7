package logic

import (
	"testing"

	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRecordRenewalInheritsOrigin(t *testing.T) {
	db := setupTestDB(t)
	campaignLogic := NewCampaignLogic(db)
	donationLogic := NewDonationLogic(db)
	renewalLogic := NewRenewalLogic(db, donationLogic)

	campaign := createTestCampaign(t, campaignLogic, 2)

	origin, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId:  "pi_first_charge",
		SubscriptionId: "sub_abc",
		Amount:         decimal.NewFromInt(10),
		Frequency:      model.FrequencyMonthly,
		DonorName:      "Eve",
		DonorEmail:     "eve@example.org",
		DisplayName:    "E.",
		CampaignId:     campaign.Id,
		PaymentMethod:  model.PaymentMethodStripe,
	}, model.DonationStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, 2, origin.Donation.MatchedMultiplier)

	result, err := renewalLogic.RecordRenewal("in_renewal_1", "sub_abc", "", model.PaymentMethodStripe, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.True(t, result.Created)

	renewal := result.Donation
	require.NotEqual(t, origin.Donation.Id, renewal.Id)
	require.Equal(t, "Eve", renewal.DonorName)
	require.Equal(t, "eve@example.org", renewal.DonorEmail)
	require.Equal(t, "E.", renewal.DisplayName)
	require.Equal(t, campaign.Id, renewal.CampaignId)
	require.Equal(t, origin.Donation.DonorId, renewal.DonorId)
	require.False(t, renewal.NeedsReview)

	// 续费继承首笔记录的倍数快照，不按当前活动重算
	campaign.MatchingMultiplier = 5
	require.NoError(t, campaignLogic.UpdateCampaign(campaign))
	second, err := renewalLogic.RecordRenewal("in_renewal_2", "sub_abc", "", model.PaymentMethodStripe, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Equal(t, 2, second.Donation.MatchedMultiplier)

	// 首笔记录自身不被续费改动
	reloaded, err := donationLogic.GetDonation(origin.Donation.Id)
	require.NoError(t, err)
	require.Equal(t, "pi_first_charge", reloaded.TransactionId)
	require.Equal(t, model.DonationStatusCompleted, reloaded.Status)
}

func TestRecordRenewalReplayedInvoice(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)
	renewalLogic := NewRenewalLogic(db, donationLogic)

	first, err := renewalLogic.RecordRenewal("in_replay", "sub_replay", "", model.PaymentMethodStripe, decimal.NewFromInt(15))
	require.NoError(t, err)
	require.True(t, first.Created)

	// 同一账单ID重放不产生第二条记录
	second, err := renewalLogic.RecordRenewal("in_replay", "sub_replay", "", model.PaymentMethodStripe, decimal.NewFromInt(15))
	require.NoError(t, err)
	require.True(t, second.WasExisting)
	require.Equal(t, first.Donation.Id, second.Donation.Id)

	var count int64
	require.NoError(t, db.Model(&model.Donation{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRecordRenewalUnlinkedNeedsReview(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)
	renewalLogic := NewRenewalLogic(db, donationLogic)

	// 找不到首笔订阅记录：宁可入账，打上待复核标记
	result, err := renewalLogic.RecordRenewal("in_orphan", "sub_unknown", "cus_unknown", model.PaymentMethodStripe, decimal.NewFromInt(20))
	require.NoError(t, err)
	require.True(t, result.Created)
	require.True(t, result.Donation.NeedsReview)
	require.Equal(t, model.DonationStatusCompleted, result.Donation.Status)
}

func TestRecordRenewalResolvesViaSubscriptionTable(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)
	renewalLogic := NewRenewalLogic(db, donationLogic)

	origin, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId: "pch_first",
		Amount:        decimal.NewFromInt(30),
		DonorName:     "Frank",
		DonorEmail:    "frank@example.org",
		PaymentMethod: model.PaymentMethodPayArc,
	}, model.DonationStatusCompleted)
	require.NoError(t, err)

	// 首笔捐赠行没带subscription_id，靠订阅登记表定位
	require.NoError(t, renewalLogic.RegisterSubscription("psub_1", "cus_payarc", origin.Donation.Id, decimal.NewFromInt(30)))

	result, err := renewalLogic.RecordRenewal("pch_renewal", "psub_1", "", model.PaymentMethodPayArc, decimal.NewFromInt(30))
	require.NoError(t, err)
	require.Equal(t, "Frank", result.Donation.DonorName)
	require.False(t, result.Donation.NeedsReview)

	// 只有客户ID时退回该客户最近的活跃订阅
	byCustomer, err := renewalLogic.RecordRenewal("pch_renewal_2", "", "cus_payarc", model.PaymentMethodPayArc, decimal.NewFromInt(30))
	require.NoError(t, err)
	require.Equal(t, "Frank", byCustomer.Donation.DonorName)
	require.False(t, byCustomer.Donation.NeedsReview)
}

func TestRegisterSubscriptionIdempotent(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)
	renewalLogic := NewRenewalLogic(db, donationLogic)

	require.NoError(t, renewalLogic.RegisterSubscription("sub_reg", "cus_reg", 1, decimal.NewFromInt(5)))
	require.NoError(t, renewalLogic.RegisterSubscription("sub_reg", "cus_reg", 1, decimal.NewFromInt(5)))

	var count int64
	require.NoError(t, db.Model(&model.PayArcSubscription{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	err := renewalLogic.RegisterSubscription("", "cus", 1, decimal.NewFromInt(5))
	require.True(t, IsValidation(err))
}
