package logic

import (
	"context"
	"strings"
	"testing"

	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeProvider 记录调用次数的渠道桩
type fakeProvider struct {
	name        string
	prefix      string
	refundCalls int
	cancelCalls int
	refundErr   error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Supports(id string) bool {
	return strings.HasPrefix(id, f.prefix)
}

func (f *fakeProvider) Refund(ctx context.Context, transactionId string) (string, error) {
	f.refundCalls++
	if f.refundErr != nil {
		return "", f.refundErr
	}
	return "re_" + transactionId, nil
}

func (f *fakeProvider) CancelSubscription(ctx context.Context, subscriptionId string) error {
	f.cancelCalls++
	return nil
}

func (f *fakeProvider) UpdateSubscriptionAmount(ctx context.Context, subscriptionId string, amount decimal.Decimal) error {
	return nil
}

func TestRefund(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)
	provider := &fakeProvider{name: "stripe", prefix: "pi_"}
	refundLogic := NewRefundLogic(db, donationLogic, []Provider{provider})

	donation, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_refund_me",
		Amount:        decimal.NewFromInt(50),
	}, model.DonationStatusCompleted)
	require.NoError(t, err)

	refundId, err := refundLogic.Refund(context.Background(), donation.Donation.Id)
	require.NoError(t, err)
	require.Equal(t, "re_pi_refund_me", refundId)
	require.Equal(t, 1, provider.refundCalls)

	reloaded, err := donationLogic.GetDonation(donation.Donation.Id)
	require.NoError(t, err)
	require.Equal(t, model.DonationStatusRefunded, reloaded.Status)
	require.NotNil(t, reloaded.Metadata.Data().Refund)
	require.Equal(t, "re_pi_refund_me", reloaded.Metadata.Data().Refund.RefundId)
}

func TestRefundRejectedBeforeProviderCall(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)
	provider := &fakeProvider{name: "stripe", prefix: "pi_"}
	refundLogic := NewRefundLogic(db, donationLogic, []Provider{provider})

	donation, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_double_refund",
		Amount:        decimal.NewFromInt(50),
	}, model.DonationStatusCompleted)
	require.NoError(t, err)

	_, err = refundLogic.Refund(context.Background(), donation.Donation.Id)
	require.NoError(t, err)
	require.Equal(t, 1, provider.refundCalls)

	// 二次退款在状态检查处被拦下，不会再打渠道API
	_, err = refundLogic.Refund(context.Background(), donation.Donation.Id)
	require.True(t, IsValidation(err))
	require.Equal(t, 1, provider.refundCalls)

	// pending状态同样不允许退款
	pending, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_pending_refund",
		Amount:        decimal.NewFromInt(10),
	}, model.DonationStatusPending)
	require.NoError(t, err)
	_, err = refundLogic.Refund(context.Background(), pending.Donation.Id)
	require.True(t, IsValidation(err))
	require.Equal(t, 1, provider.refundCalls)
}

func TestRefundUnsupportedTransaction(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)
	refundLogic := NewRefundLogic(db, donationLogic, []Provider{&fakeProvider{name: "stripe", prefix: "pi_"}})

	donation, err := donationLogic.CreateManual(&model.Donation{
		Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	_, err = refundLogic.Refund(context.Background(), donation.Id)
	var ute *UnsupportedTransactionError
	require.ErrorAs(t, err, &ute)
}

func TestCancelSubscription(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)
	renewalLogic := NewRenewalLogic(db, donationLogic)
	provider := &fakeProvider{name: "stripe", prefix: "sub_"}
	refundLogic := NewRefundLogic(db, donationLogic, []Provider{provider})

	origin, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId:  "pi_sub_first",
		SubscriptionId: "sub_cancel_me",
		Amount:         decimal.NewFromInt(10),
		Frequency:      model.FrequencyMonthly,
	}, model.DonationStatusCompleted)
	require.NoError(t, err)
	require.NoError(t, renewalLogic.RegisterSubscription("sub_cancel_me", "cus_1", origin.Donation.Id, decimal.NewFromInt(10)))

	_, err = renewalLogic.RecordRenewal("in_sub_renewal", "sub_cancel_me", "", model.PaymentMethodStripe, decimal.NewFromInt(10))
	require.NoError(t, err)

	require.NoError(t, refundLogic.CancelSubscription(context.Background(), "sub_cancel_me"))
	require.Equal(t, 1, provider.cancelCalls)

	// 订阅下的全部未结记录都落为cancelled
	var donations []model.Donation
	require.NoError(t, db.Where("subscription_id = ?", "sub_cancel_me").Find(&donations).Error)
	require.Len(t, donations, 2)
	for _, d := range donations {
		require.Equal(t, model.DonationStatusCancelled, d.Status)
	}

	// 订阅登记停用，之后的续费回调打上待复核
	var sub model.PayArcSubscription
	require.NoError(t, db.Where("subscription_id = ?", "sub_cancel_me").First(&sub).Error)
	require.False(t, sub.Active)
}

func TestApplySubscriptionCancelledDoesNotCallProvider(t *testing.T) {
	db := setupTestDB(t)
	donationLogic := NewDonationLogic(db)
	provider := &fakeProvider{name: "stripe", prefix: "sub_"}
	refundLogic := NewRefundLogic(db, donationLogic, []Provider{provider})

	_, err := donationLogic.ResolveOrCreate(&model.Donation{
		TransactionId:  "pi_pushed_cancel",
		SubscriptionId: "sub_pushed",
		Amount:         decimal.NewFromInt(10),
	}, model.DonationStatusCompleted)
	require.NoError(t, err)

	// 渠道推送的取消只落库，不回调渠道
	require.NoError(t, refundLogic.ApplySubscriptionCancelled("sub_pushed"))
	require.Equal(t, 0, provider.cancelCalls)
}
