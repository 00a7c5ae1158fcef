package messaging

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

func newTestService(t *testing.T, users []models.User) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), storage.CollectionUsers, users))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, log), store
}

func testUsers() []models.User {
	return []models.User{
		{ID: 0, Username: "root", Roles: []models.Role{models.RoleOwner}},
		{ID: 1, Username: "alice", Roles: []models.Role{models.RoleUser}},
		{ID: 2, Username: "bobby", Roles: []models.Role{models.RoleUser}},
	}
}

func int64p(v int64) *int64 { return &v }

func TestSend_Broadcast(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testUsers())

	msg, err := svc.Send(ctx, 1, models.DummySend{Text: "hello everyone"})
	require.NoError(t, err)
	assert.True(t, msg.IsBroadcast())
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, []models.Role{models.RoleUser}, msg.Roles)
	assert.False(t, msg.IsSystem)
	assert.Equal(t, msg.ID, msg.Timestamp)

	visible, err := svc.ListVisible(ctx, 2, nil)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "hello everyone", visible[0].Text)
}

func TestSend_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("empty content", func(t *testing.T) {
		svc, _ := newTestService(t, testUsers())
		_, err := svc.Send(ctx, 1, models.DummySend{Text: "   "})
		assert.ErrorIs(t, err, models.ErrEmptyMessage)
	})

	t.Run("image only is allowed", func(t *testing.T) {
		svc, _ := newTestService(t, testUsers())
		msg, err := svc.Send(ctx, 1, models.DummySend{Image: "data:image/png;base64,AAAA"})
		require.NoError(t, err)
		assert.Empty(t, msg.Text)
	})

	t.Run("self recipient", func(t *testing.T) {
		svc, _ := newTestService(t, testUsers())
		_, err := svc.Send(ctx, 1, models.DummySend{RecipientID: int64p(1), Text: "hi"})
		assert.ErrorIs(t, err, models.ErrSelfTarget)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		svc, _ := newTestService(t, testUsers())
		_, err := svc.Send(ctx, 1, models.DummySend{RecipientID: int64p(42), Text: "hi"})
		assert.ErrorIs(t, err, models.ErrUserNotFound)
	})

	t.Run("unknown sender", func(t *testing.T) {
		svc, _ := newTestService(t, testUsers())
		_, err := svc.Send(ctx, 42, models.DummySend{Text: "hi"})
		assert.ErrorIs(t, err, models.ErrUserNotFound)
	})
}

func TestSend_MuteWindow(t *testing.T) {
	ctx := context.Background()
	base := time.Now()

	users := testUsers()
	users[1].IsMuted = true
	users[1].MuteUntil = base.Add(10 * time.Minute).UnixMilli()

	svc, _ := newTestService(t, users)

	// внутри окна мута отправка запрещена
	svc.now = func() time.Time { return base.Add(5 * time.Minute) }
	_, err := svc.Send(ctx, 1, models.DummySend{Text: "hi"})
	assert.ErrorIs(t, err, models.ErrMuted)

	// после истечения окна сообщение проходит без снятия флага
	svc.now = func() time.Time { return base.Add(11 * time.Minute) }
	_, err = svc.Send(ctx, 1, models.DummySend{Text: "hi"})
	assert.NoError(t, err)
}

func TestSend_DirectAddsContact(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, testUsers())

	_, err := svc.Send(ctx, 1, models.DummySend{RecipientID: int64p(2), Text: "hi"})
	require.NoError(t, err)

	var users []models.User
	require.NoError(t, store.Load(ctx, storage.CollectionUsers, &users))
	assert.Equal(t, []int64{2}, users[1].ActiveContactIDs)

	// повторная отправка не дублирует контакт
	_, err = svc.Send(ctx, 1, models.DummySend{RecipientID: int64p(2), Text: "again"})
	require.NoError(t, err)
	require.NoError(t, store.Load(ctx, storage.CollectionUsers, &users))
	assert.Equal(t, []int64{2}, users[1].ActiveContactIDs)
}

func TestSend_MonotonicIDs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testUsers())

	fixed := time.Now()
	svc.now = func() time.Time { return fixed }

	first, err := svc.Send(ctx, 1, models.DummySend{Text: "one"})
	require.NoError(t, err)
	second, err := svc.Send(ctx, 1, models.DummySend{Text: "two"})
	require.NoError(t, err)

	assert.Equal(t, fixed.UnixMilli(), first.ID)
	assert.Equal(t, first.ID+1, second.ID)
}

func TestListVisible_BlockedSenderHidden(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testUsers())

	_, err := svc.Send(ctx, 2, models.DummySend{Text: "spam"})
	require.NoError(t, err)

	_, err = svc.Block(ctx, 1, 2)
	require.NoError(t, err)

	visible, err := svc.ListVisible(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, visible)

	// для остальных сообщение остаётся видимым
	visible, err = svc.ListVisible(ctx, 0, nil)
	require.NoError(t, err)
	assert.Len(t, visible, 1)
}

func TestListVisible_BlockedSenderHiddenInThread(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testUsers())

	// переписка в обе стороны до блокировки
	_, err := svc.Send(ctx, 2, models.DummySend{RecipientID: int64p(1), Text: "from bobby"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, 1, models.DummySend{RecipientID: int64p(2), Text: "from alice"})
	require.NoError(t, err)

	_, err = svc.Block(ctx, 1, 2)
	require.NoError(t, err)

	// для заблокировавшего скрыты и ранее полученные сообщения,
	// собственные остаются видимыми
	thread, err := svc.ListVisible(ctx, 1, int64p(2))
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, "from alice", thread[0].Text)

	// блокировка односторонняя: второй участник видит всю переписку
	thread, err = svc.ListVisible(ctx, 2, int64p(1))
	require.NoError(t, err)
	assert.Len(t, thread, 2)
}

func TestListVisible_SystemBroadcastIgnoresBlocks(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testUsers())

	_, err := svc.SendSystem(ctx, nil, "техработы в полночь")
	require.NoError(t, err)

	visible, err := svc.ListVisible(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.True(t, visible[0].IsSystem)
	assert.Equal(t, models.SystemSenderID, visible[0].SenderID)
}

func TestListVisible_Thread(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testUsers())

	_, err := svc.Send(ctx, 1, models.DummySend{RecipientID: int64p(2), Text: "to bobby"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, 2, models.DummySend{RecipientID: int64p(1), Text: "to alice"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, 0, models.DummySend{RecipientID: int64p(1), Text: "from root"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, 1, models.DummySend{Text: "broadcast"})
	require.NoError(t, err)
	_, err = svc.SendSystem(ctx, int64p(1), "системное уведомление")
	require.NoError(t, err)

	thread, err := svc.ListVisible(ctx, 1, int64p(2))
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, "to bobby", thread[0].Text)
	assert.Equal(t, "to alice", thread[1].Text)
	assert.Equal(t, "системное уведомление", thread[2].Text)
}

func TestThreadLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testUsers())

	_, err := svc.StartThread(ctx, 1, 1)
	assert.ErrorIs(t, err, models.ErrSelfTarget)

	viewer, err := svc.StartThread(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, viewer.ActiveContactIDs)

	// идемпотентность
	viewer, err = svc.StartThread(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, viewer.ActiveContactIDs)

	contacts, err := svc.Contacts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "bobby", contacts[0].Username)

	_, err = svc.Send(ctx, 1, models.DummySend{RecipientID: int64p(2), Text: "hi"})
	require.NoError(t, err)

	viewer, err = svc.DeleteThread(ctx, 1, 2)
	require.NoError(t, err)
	assert.Empty(t, viewer.ActiveContactIDs)

	// сообщения переписки сохраняются
	thread, err := svc.ListVisible(ctx, 1, int64p(2))
	require.NoError(t, err)
	assert.Len(t, thread, 1)
}

func TestBlock(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testUsers())

	_, err := svc.StartThread(ctx, 1, 2)
	require.NoError(t, err)

	viewer, err := svc.Block(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, viewer.BlockedUserIDs)
	assert.Empty(t, viewer.ActiveContactIDs)

	_, err = svc.Block(ctx, 1, 1)
	assert.ErrorIs(t, err, models.ErrSelfTarget)
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, testUsers())

	report, err := svc.Report(ctx, 1, models.DummyReport{
		ReportedID:  2,
		Reason:      models.ReportReasonSpam,
		Description: "рассылает рекламу",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPending, report.Status)
	assert.NotEmpty(t, report.ID)

	var reports []models.Report
	require.NoError(t, store.Load(ctx, storage.CollectionReports, &reports))
	assert.Len(t, reports, 1)

	_, err = svc.Report(ctx, 1, models.DummyReport{ReportedID: 1, Reason: models.ReportReasonOther})
	assert.ErrorIs(t, err, models.ErrSelfTarget)

	_, err = svc.Report(ctx, 1, models.DummyReport{ReportedID: 2, Reason: "rude"})
	assert.Error(t, err)
}
