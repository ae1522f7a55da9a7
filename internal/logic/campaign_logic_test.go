package logic

import (
	"testing"

	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func createTestCampaign(t *testing.T, logic *CampaignLogic, multiplier int) *model.Campaign {
	t.Helper()
	campaign := &model.Campaign{
		Title:              "Matching Campaign",
		Slug:               "matching-campaign",
		GoalAmount:         decimal.NewFromInt(10000),
		MatchingEnabled:    multiplier > 1,
		MatchingMultiplier: multiplier,
		Active:             true,
	}
	require.NoError(t, logic.CreateCampaign(campaign))
	return campaign
}

func TestMatchingMultiplierSnapshot(t *testing.T) {
	db := setupTestDB(t)
	campaignLogic := NewCampaignLogic(db)
	donationLogic := NewDonationLogic(db)

	campaign := createTestCampaign(t, campaignLogic, 3)

	result, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_matched",
		Amount:        decimal.NewFromInt(100),
		CampaignId:    campaign.Id,
	}, model.DonationStatusCompleted)
	require.NoError(t, err)
	require.True(t, result.Donation.IsMatched)
	require.Equal(t, 3, result.Donation.MatchedMultiplier)
	require.True(t, DisplayAmount(result.Donation).Equal(decimal.NewFromInt(300)))

	// 倍数改成2，已有记录的展示金额不变
	campaign.MatchingMultiplier = 2
	require.NoError(t, campaignLogic.UpdateCampaign(campaign))

	reloaded, err := donationLogic.GetDonation(result.Donation.Id)
	require.NoError(t, err)
	require.Equal(t, 3, reloaded.MatchedMultiplier)
	require.True(t, DisplayAmount(reloaded).Equal(decimal.NewFromInt(300)))

	// 新记录按新倍数快照
	later, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_matched_later",
		Amount:        decimal.NewFromInt(100),
		CampaignId:    campaign.Id,
	}, model.DonationStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, 2, later.Donation.MatchedMultiplier)
}

func TestDisplayAmountUnmatched(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)

	result, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_unmatched",
		Amount:        decimal.NewFromInt(75),
	}, model.DonationStatusCompleted)
	require.NoError(t, err)
	require.False(t, result.Donation.IsMatched)
	require.True(t, DisplayAmount(result.Donation).Equal(decimal.NewFromInt(75)))
}

func TestMatchedTotalAggregation(t *testing.T) {
	db := setupTestDB(t)
	campaignLogic := NewCampaignLogic(db)
	donationLogic := NewDonationLogic(db)

	campaign := createTestCampaign(t, campaignLogic, 2)

	amounts := []int64{10, 25, 40}
	for i, amount := range amounts {
		_, err := donationLogic.ResolveOrCreate(&model.Donation{
			TransactionId: "pi_agg_" + string(rune('a'+i)),
			Amount:        decimal.NewFromInt(amount),
			CampaignId:    campaign.Id,
		}, model.DonationStatusCompleted)
		require.NoError(t, err)
	}
	// pending的不计入已筹
	_, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_agg_pending",
		Amount:        decimal.NewFromInt(999),
		CampaignId:    campaign.Id,
	}, model.DonationStatusPending)
	require.NoError(t, err)

	raised, err := campaignLogic.RaisedAmount(campaign.Id)
	require.NoError(t, err)
	require.True(t, raised.Equal(decimal.NewFromInt(75)))

	// 逐笔按快照倍数求和
	matched, err := campaignLogic.MatchedTotal(campaign.Id)
	require.NoError(t, err)
	require.True(t, matched.Equal(decimal.NewFromInt(150)))

	stats, err := campaignLogic.GetCampaignStats(campaign.Id)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.DonationCount)
	require.True(t, stats.RaisedAmount.Equal(decimal.NewFromInt(75)))
	require.True(t, stats.MatchedTotal.Equal(decimal.NewFromInt(150)))

	// 上调倍数不回溯历史合计，汇总与逐条展示保持同一口径
	campaign.MatchingMultiplier = 5
	require.NoError(t, campaignLogic.UpdateCampaign(campaign))

	matched, err = campaignLogic.MatchedTotal(campaign.Id)
	require.NoError(t, err)
	require.True(t, matched.Equal(decimal.NewFromInt(150)))

	// 新捐赠按新倍数快照计入
	_, err = donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_agg_after_bump",
		Amount:        decimal.NewFromInt(10),
		CampaignId:    campaign.Id,
	}, model.DonationStatusCompleted)
	require.NoError(t, err)

	matched, err = campaignLogic.MatchedTotal(campaign.Id)
	require.NoError(t, err)
	require.True(t, matched.Equal(decimal.NewFromInt(200)))
}

func TestRefreshRaisedAmount(t *testing.T) {
	db := setupTestDB(t)
	campaignLogic := NewCampaignLogic(db)
	donationLogic := NewDonationLogic(db)

	campaign := createTestCampaign(t, campaignLogic, 1)

	_, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_refresh",
		Amount:        decimal.NewFromInt(60),
		CampaignId:    campaign.Id,
	}, model.DonationStatusCompleted)
	require.NoError(t, err)

	require.NoError(t, campaignLogic.RefreshRaisedAmount(campaign.Id))

	reloaded, err := campaignLogic.GetCampaign(campaign.Id)
	require.NoError(t, err)
	require.True(t, reloaded.RaisedAmount.Equal(decimal.NewFromInt(60)))
}

func TestCampaignValidation(t *testing.T) {
	db := setupTestDB(t)
	campaignLogic := NewCampaignLogic(db)

	err := campaignLogic.CreateCampaign(&model.Campaign{Slug: "no-title"})
	require.True(t, IsValidation(err))

	err = campaignLogic.CreateCampaign(&model.Campaign{Title: "No Slug"})
	require.True(t, IsValidation(err))

	err = campaignLogic.CreateCampaign(&model.Campaign{
		Title:              "Bad Multiplier",
		Slug:               "bad-multiplier",
		MatchingMultiplier: -1,
	})
	require.True(t, IsValidation(err))
}
