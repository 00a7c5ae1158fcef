package rewards

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piratproject/pirat-backend/internal/models"
	"github.com/piratproject/pirat-backend/internal/storage"
)

func newTestService(t *testing.T, users []models.User, codes []models.Promocode) (*Service, *storage.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Save(ctx, storage.CollectionUsers, users))
	require.NoError(t, store.Save(ctx, storage.CollectionPromocodes, codes))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, log), store
}

func loadUsers(t *testing.T, store *storage.MemoryStore) []models.User {
	t.Helper()
	var users []models.User
	require.NoError(t, store.Load(context.Background(), storage.CollectionUsers, &users))
	return users
}

func loadCodes(t *testing.T, store *storage.MemoryStore) []models.Promocode {
	t.Helper()
	var codes []models.Promocode
	require.NoError(t, store.Load(context.Background(), storage.CollectionPromocodes, &codes))
	return codes
}

func TestRedeem_GrantsDaysAndDeletesExhaustedCode(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t,
		[]models.User{{ID: 0, Username: "alice", ReferralCode: "AAAAAA"}},
		[]models.Promocode{{ID: "p1", Code: "FREE7", Days: 7, MaxActivations: 1}},
	)

	result, err := svc.Redeem(ctx, 0, "free7")
	require.NoError(t, err)
	assert.Equal(t, 7, result.Days)
	assert.Equal(t, "FREE7", result.Code)

	users := loadUsers(t, store)
	assert.Equal(t, 7, users[0].SubscriptionDays)

	// код исчерпан и удалён, повторная активация невозможна
	assert.Empty(t, loadCodes(t, store))
	_, err = svc.Redeem(ctx, 0, "FREE7")
	assert.ErrorIs(t, err, models.ErrInvalidCode)
}

func TestRedeem_MultiUseCode(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t,
		[]models.User{
			{ID: 0, Username: "alice", ReferralCode: "AAAAAA"},
			{ID: 1, Username: "bobby", ReferralCode: "BBBBBB"},
		},
		[]models.Promocode{{ID: "p1", Code: "DOUBLE", Days: 2, MaxActivations: 2}},
	)

	_, err := svc.Redeem(ctx, 0, "DOUBLE")
	require.NoError(t, err)

	codes := loadCodes(t, store)
	require.Len(t, codes, 1)
	assert.Equal(t, 1, codes[0].CurrentActivations)

	_, err = svc.Redeem(ctx, 1, "DOUBLE")
	require.NoError(t, err)
	assert.Empty(t, loadCodes(t, store))

	_, err = svc.Redeem(ctx, 0, "DOUBLE")
	assert.ErrorIs(t, err, models.ErrInvalidCode)
}

func TestRedeem_ExhaustedRecordHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t,
		[]models.User{{ID: 0, Username: "alice"}},
		[]models.Promocode{{ID: "p1", Code: "STALE", Days: 5, MaxActivations: 2, CurrentActivations: 2}},
	)

	_, err := svc.Redeem(ctx, 0, "STALE")
	assert.ErrorIs(t, err, models.ErrCodeExhausted)

	assert.Zero(t, loadUsers(t, store)[0].SubscriptionDays)
	assert.Len(t, loadCodes(t, store), 1)
}

func TestRedeem_FallbackCode(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, []models.User{{ID: 0, Username: "alice"}}, nil)

	result, err := svc.Redeem(ctx, 0, "  free3day  ")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Days)
	assert.Equal(t, 3, loadUsers(t, store)[0].SubscriptionDays)

	// резервный код не расходуется
	_, err = svc.Redeem(ctx, 0, "FREE3DAY")
	require.NoError(t, err)
	assert.Equal(t, 6, loadUsers(t, store)[0].SubscriptionDays)
}

func TestRedeem_InvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, []models.User{{ID: 0, Username: "alice"}}, nil)

	_, err := svc.Redeem(ctx, 0, "NOPE")
	assert.ErrorIs(t, err, models.ErrInvalidCode)

	_, err = svc.Redeem(ctx, 0, "   ")
	assert.ErrorIs(t, err, models.ErrInvalidCode)

	_, err = svc.Redeem(ctx, 42, "FREE3DAY")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestCreatePromocode(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil, nil)

	created, err := svc.CreatePromocode(ctx, 0, models.DummyPromocode{
		Code:           "summer25",
		Days:           25,
		MaxActivations: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "SUMMER25", created.Code)
	assert.NotEmpty(t, created.ID)
	assert.Zero(t, created.CurrentActivations)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)

	// дубликат в другом регистре отклоняется
	_, err = svc.CreatePromocode(ctx, 0, models.DummyPromocode{
		Code:           "Summer25",
		Days:           1,
		MaxActivations: 1,
	})
	assert.ErrorIs(t, err, models.ErrDuplicateCode)

	assert.Len(t, loadCodes(t, store), 1)
}

func TestDeletePromocode(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil, []models.Promocode{{ID: "p1", Code: "FREE7", Days: 7, MaxActivations: 1}})

	require.NoError(t, svc.DeletePromocode(ctx, "p1"))
	assert.Empty(t, loadCodes(t, store))

	assert.ErrorIs(t, svc.DeletePromocode(ctx, "p1"), models.ErrPromocodeNotFound)
}

func TestCompleteReferral_TierGrants(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, []models.User{{ID: 0, Username: "alice", ReferralCode: "AAAAAA"}}, nil)

	// первое приглашение достигает ступени 1 → +1 день
	granted, err := svc.CompleteReferral(ctx, "aaaaaa")
	require.NoError(t, err)
	assert.Equal(t, 1, granted)

	users := loadUsers(t, store)
	assert.Equal(t, 1, users[0].ReferralCount)
	assert.Equal(t, 1, users[0].SubscriptionDays)

	// между ступенями награды нет
	granted, err = svc.CompleteReferral(ctx, "AAAAAA")
	require.NoError(t, err)
	assert.Zero(t, granted)

	// счётчик 4 → 5 достигает ступени 5 → +3 дня
	users = loadUsers(t, store)
	users[0].ReferralCount = 4
	require.NoError(t, store.Save(ctx, storage.CollectionUsers, users))

	granted, err = svc.CompleteReferral(ctx, "AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, 3, granted)
	assert.Equal(t, 4, loadUsers(t, store)[0].SubscriptionDays)
}

func TestCompleteReferral_UnknownCode(t *testing.T) {
	svc, _ := newTestService(t, []models.User{{ID: 0, ReferralCode: "AAAAAA"}}, nil)

	_, err := svc.CompleteReferral(context.Background(), "ZZZZZZ")
	assert.ErrorIs(t, err, models.ErrInvalidCode)
}

func TestTiers(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	tiers := svc.Tiers()
	require.Len(t, tiers, 5)
	assert.Equal(t, Tier{Count: 1, Days: 1, Label: "Новичок"}, tiers[0])
	assert.Equal(t, Tier{Count: 90, Days: 90, Label: "Амбассадор"}, tiers[4])

	// копия: изменение результата не трогает таблицу
	tiers[0].Days = 100
	assert.Equal(t, 1, svc.Tiers()[0].Days)
}

func TestProgress(t *testing.T) {
	svc, _ := newTestService(t, []models.User{{ID: 0, ReferralCount: 7, ReferralCode: "AAAAAA"}}, nil)

	p, err := svc.Progress(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Count)
	assert.Equal(t, 5, p.Achieved.Count)
	require.NotNil(t, p.Next)
	assert.Equal(t, 10, p.Next.Count)

	_, err = svc.Progress(context.Background(), 42)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}
