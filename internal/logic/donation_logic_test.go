package logic

import (
	"testing"

	"github.com/blues/dcs/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestResolveOrCreateIdempotent(t *testing.T) {
	db := setupTestDB(t)
	logic := NewDonationLogic(db)

	candidate := &model.Donation{
		TransactionId: "pi_abc123",
		Amount:        decimal.NewFromInt(50),
		DonorName:     "Alice",
		DonorEmail:    "alice@example.org",
		PaymentMethod: model.PaymentMethodStripe,
	}

	first, err := logic.ResolveOrCreate(candidate, model.DonationStatusCompleted)
	require.NoError(t, err)
	require.True(t, first.Created)
	require.True(t, first.Transitioned)
	require.False(t, first.WasExisting)
	require.Equal(t, model.DonationStatusCompleted, first.Donation.Status)

	// 同一交易ID重复投递：不产生第二条记录，不再报告迁移
	second, err := logic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_abc123",
		Amount:        decimal.NewFromInt(50),
	}, model.DonationStatusCompleted)
	require.NoError(t, err)
	require.True(t, second.WasExisting)
	require.False(t, second.Transitioned)
	require.Equal(t, first.Donation.Id, second.Donation.Id)

	var count int64
	require.NoError(t, db.Model(&model.Donation{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestResolveOrCreateCompletesPending(t *testing.T) {
	db := setupTestDB(t)
	logic := NewDonationLogic(db)

	pending, err := logic.ResolveOrCreate(&model.Donation{
		TransactionId: "cs_session_1",
		Amount:        decimal.NewFromInt(25),
		PaymentMethod: model.PaymentMethodStripe,
	}, model.DonationStatusPending)
	require.NoError(t, err)
	require.Equal(t, model.DonationStatusPending, pending.Donation.Status)

	// webhook到达，补全捐赠人信息并迁移到completed
	completed, err := logic.ResolveOrCreate(&model.Donation{
		TransactionId: "cs_session_1",
		Amount:        decimal.NewFromInt(25),
		DonorName:     "Bob",
		DonorEmail:    "bob@example.org",
	}, model.DonationStatusCompleted)
	require.NoError(t, err)
	require.True(t, completed.Transitioned)
	require.False(t, completed.Created)
	require.Equal(t, pending.Donation.Id, completed.Donation.Id)
	require.Equal(t, model.DonationStatusCompleted, completed.Donation.Status)
	require.Equal(t, "Bob", completed.Donation.DonorName)
	require.NotZero(t, completed.Donation.DonorId)
}

func TestCompletePendingKeepsExistingDonorFields(t *testing.T) {
	db := setupTestDB(t)
	logic := NewDonationLogic(db)

	_, err := logic.ResolveOrCreate(&model.Donation{
		TransactionId: "cs_session_2",
		Amount:        decimal.NewFromInt(10),
		DonorName:     "Carol",
		DonorEmail:    "carol@example.org",
		DisplayName:   "C.",
	}, model.DonationStatusPending)
	require.NoError(t, err)

	// 空值绝不覆盖已有的捐赠人信息
	result, err := logic.ResolveOrCreate(&model.Donation{
		TransactionId: "cs_session_2",
		Amount:        decimal.NewFromInt(10),
		DonorName:     "",
		DonorEmail:    "",
	}, model.DonationStatusCompleted)
	require.NoError(t, err)
	require.True(t, result.Transitioned)
	require.Equal(t, "Carol", result.Donation.DonorName)
	require.Equal(t, "carol@example.org", result.Donation.DonorEmail)
	require.Equal(t, "C.", result.Donation.DisplayName)
}

func TestResolveOrCreateValidation(t *testing.T) {
	db := setupTestDB(t)
	logic := NewDonationLogic(db)

	_, err := logic.ResolveOrCreate(&model.Donation{
		Amount: decimal.NewFromInt(10),
	}, model.DonationStatusCompleted)
	require.True(t, IsValidation(err))

	_, err = logic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_1",
		Amount:        decimal.Zero,
	}, model.DonationStatusCompleted)
	require.True(t, IsValidation(err))

	_, err = logic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_2",
		Amount:        decimal.NewFromInt(10),
		DonorEmail:    "not-an-email",
	}, model.DonationStatusCompleted)
	require.True(t, IsValidation(err))

	_, err = logic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_3",
		Amount:        decimal.NewFromInt(10),
	}, model.DonationStatusRefunded)
	require.True(t, IsValidation(err))
}

func TestTransitionWhitelist(t *testing.T) {
	db := setupTestDB(t)
	logic := NewDonationLogic(db)

	result, err := logic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_transition",
		Amount:        decimal.NewFromInt(30),
	}, model.DonationStatusCompleted)
	require.NoError(t, err)
	id := result.Donation.Id

	// completed不能回到pending
	err = logic.Transition(id, model.DonationStatusCompleted, model.DonationStatusPending)
	require.True(t, IsValidation(err))

	// refunded之后只能走deleted
	require.NoError(t, logic.Transition(id, model.DonationStatusCompleted, model.DonationStatusRefunded))
	err = logic.Transition(id, model.DonationStatusRefunded, model.DonationStatusCompleted)
	require.True(t, IsValidation(err))

	// from状态不匹配时返回冲突
	err = logic.Transition(id, model.DonationStatusCompleted, model.DonationStatusRefunded)
	require.True(t, IsConflict(err))
}

func TestDeleteIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	logic := NewDonationLogic(db)

	result, err := logic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_delete",
		Amount:        decimal.NewFromInt(40),
	}, model.DonationStatusCompleted)
	require.NoError(t, err)
	id := result.Donation.Id

	require.NoError(t, logic.Delete(id))
	// 重复删除幂等
	require.NoError(t, logic.Delete(id))

	// 同一交易ID重新投递不复活记录
	replay, err := logic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_delete",
		Amount:        decimal.NewFromInt(40),
	}, model.DonationStatusCompleted)
	require.NoError(t, err)
	require.True(t, replay.WasExisting)
	require.False(t, replay.Transitioned)
	require.Equal(t, model.DonationStatusDeleted, replay.Donation.Status)
}

func TestListDonationsExcludesDeleted(t *testing.T) {
	db := setupTestDB(t)
	logic := NewDonationLogic(db)

	kept, err := logic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_kept",
		Amount:        decimal.NewFromInt(5),
	}, model.DonationStatusCompleted)
	require.NoError(t, err)

	removed, err := logic.ResolveOrCreate(&model.Donation{
		TransactionId: "pi_removed",
		Amount:        decimal.NewFromInt(5),
	}, model.DonationStatusCompleted)
	require.NoError(t, err)
	require.NoError(t, logic.Delete(removed.Donation.Id))

	donations, total, err := logic.ListDonations(DonationFilter{}, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, kept.Donation.Id, donations[0].Id)

	// 显式筛选deleted状态时可见
	donations, total, err = logic.ListDonations(DonationFilter{Status: model.DonationStatusDeleted}, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, removed.Donation.Id, donations[0].Id)
}

func TestCreateManualGeneratesTransactionId(t *testing.T) {
	db := setupTestDB(t)
	logic := NewDonationLogic(db)

	donation, err := logic.CreateManual(&model.Donation{
		Amount:    decimal.NewFromInt(100),
		DonorName: "Offline Donor",
	})
	require.NoError(t, err)
	require.Equal(t, model.DonationStatusCompleted, donation.Status)
	require.Equal(t, model.PaymentMethodManual, donation.PaymentMethod)
	require.Contains(t, donation.TransactionId, "manual_")

	// 指定已存在的交易ID时报错而不是静默幂等
	_, err = logic.CreateManual(&model.Donation{
		TransactionId: donation.TransactionId,
		Amount:        decimal.NewFromInt(100),
	})
	require.True(t, IsValidation(err))
}

func TestConfirmByReference(t *testing.T) {
	db := setupTestDB(t)
	logic := NewDonationLogic(db)

	_, err := logic.ResolveOrCreate(&model.Donation{
		TransactionId: "cs_confirm",
		Amount:        decimal.NewFromInt(20),
		PaymentMethod: model.PaymentMethodStripe,
	}, model.DonationStatusPending)
	require.NoError(t, err)

	result, err := logic.ConfirmByReference("cs_confirm", &model.Donation{
		DonorName:  "Dave",
		DonorEmail: "dave@example.org",
	})
	require.NoError(t, err)
	require.True(t, result.Transitioned)
	require.Equal(t, model.DonationStatusCompleted, result.Donation.Status)
	require.Equal(t, "Dave", result.Donation.DonorName)

	// 回跳和webhook谁先到都行，后到的一方幂等
	again, err := logic.ConfirmByReference("cs_confirm", nil)
	require.NoError(t, err)
	require.True(t, again.WasExisting)
	require.False(t, again.Transitioned)

	_, err = logic.ConfirmByReference("cs_missing", nil)
	require.True(t, IsNotFound(err))
}
