package logic

import (
	"context"
	"errors"
	"testing"

	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeCrmClient CRM客户端桩
type fakeCrmClient struct {
	contacts           map[string]int64
	nextContactId      int64
	nextContributionId int64
	contributionErr    error
	createContactCalls int
	contributionCalls  int
}

func newFakeCrmClient() *fakeCrmClient {
	return &fakeCrmClient{
		contacts:           map[string]int64{},
		nextContactId:      100,
		nextContributionId: 500,
	}
}

func (f *fakeCrmClient) FindContactByEmail(ctx context.Context, email string) (int64, error) {
	return f.contacts[email], nil
}

func (f *fakeCrmClient) CreateContact(ctx context.Context, name, email string) (int64, error) {
	f.createContactCalls++
	f.nextContactId++
	f.contacts[email] = f.nextContactId
	return f.nextContactId, nil
}

func (f *fakeCrmClient) CreateContribution(ctx context.Context, contactId int64, donation *model.Donation) (int64, error) {
	f.contributionCalls++
	if f.contributionErr != nil {
		return 0, f.contributionErr
	}
	f.nextContributionId++
	return f.nextContributionId, nil
}

func TestCrmSync(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)
	client := newFakeCrmClient()
	crmLogic := NewCrmLogic(db, client)

	donation, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_crm",
		Amount:        decimal.NewFromInt(50),
		DonorName:     "Grace",
		DonorEmail:    "grace@example.org",
	}, model.DonationStatusCompleted)
	require.NoError(t, err)

	result, err := crmLogic.Sync(context.Background(), donation.Donation.Id)
	require.NoError(t, err)
	require.False(t, result.AlreadySynced)
	require.NotZero(t, result.ContactId)
	require.NotZero(t, result.ContributionId)

	reloaded, err := donationLogic.GetDonation(donation.Donation.Id)
	require.NoError(t, err)
	require.Equal(t, result.ContactId, reloaded.CivicrmContactId)
	require.Equal(t, result.ContributionId, reloaded.CivicrmContributionId)

	// 已同步的记录直接返回，不再调用CRM
	again, err := crmLogic.Sync(context.Background(), donation.Donation.Id)
	require.NoError(t, err)
	require.True(t, again.AlreadySynced)
	require.Equal(t, result.ContributionId, again.ContributionId)
	require.Equal(t, 1, client.contributionCalls)
}

func TestCrmSyncReusesContactAfterContributionFailure(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)
	client := newFakeCrmClient()
	crmLogic := NewCrmLogic(db, client)

	donation, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_crm_retry",
		Amount:        decimal.NewFromInt(50),
		DonorName:     "Heidi",
		DonorEmail:    "heidi@example.org",
	}, model.DonationStatusCompleted)
	require.NoError(t, err)

	client.contributionErr = errors.New("civicrm temporarily unavailable")
	_, err = crmLogic.Sync(context.Background(), donation.Donation.Id)
	require.Error(t, err)
	require.Equal(t, 1, client.createContactCalls)

	// 联系人ID已落库，重试不会重复建人
	reloaded, err := donationLogic.GetDonation(donation.Donation.Id)
	require.NoError(t, err)
	require.NotZero(t, reloaded.CivicrmContactId)

	client.contributionErr = nil
	result, err := crmLogic.Sync(context.Background(), donation.Donation.Id)
	require.NoError(t, err)
	require.Equal(t, 1, client.createContactCalls)
	require.Equal(t, reloaded.CivicrmContactId, result.ContactId)
	require.NotZero(t, result.ContributionId)
}

func TestCrmSyncRequiresEmail(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)
	crmLogic := NewCrmLogic(db, newFakeCrmClient())

	donation, err := donationLogic.CreateManual(&model.Donation{
		Amount:    decimal.NewFromInt(20),
		DonorName: "No Email",
	})
	require.NoError(t, err)

	_, err = crmLogic.Sync(context.Background(), donation.Id)
	require.True(t, IsValidation(err))

	_, err = crmLogic.Sync(context.Background(), 99999)
	require.True(t, IsNotFound(err))
}
