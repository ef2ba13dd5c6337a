package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/AzielCF/az-crm/core/database"
	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/crm/repository"
	"github.com/AzielCF/az-crm/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestContactRepository_PhoneIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewContactGormRepository(setupTestDB(t))

	c := &domain.Contact{Phone: "5511999999999", Name: "Ana", Tags: []string{"vip"}}
	require.NoError(t, repo.Create(ctx, c))
	assert.NotEmpty(t, c.ID)

	err := repo.Create(ctx, &domain.Contact{Phone: "5511999999999", Name: "Outra"})
	assert.ErrorIs(t, err, domain.ErrDuplicateContact)

	stored, err := repo.GetByPhone(ctx, "5511999999999")
	require.NoError(t, err)
	assert.Equal(t, "Ana", stored.Name)
	assert.Equal(t, []string{"vip"}, stored.Tags)

	_, err = repo.GetByPhone(ctx, "000")
	assert.ErrorIs(t, err, domain.ErrContactNotFound)
}

func TestContactRepository_ListSearch(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewContactGormRepository(setupTestDB(t))

	require.NoError(t, repo.Create(ctx, &domain.Contact{Phone: "5511000000001", Name: "Maria Souza"}))
	require.NoError(t, repo.Create(ctx, &domain.Contact{Phone: "5511000000002", Name: "Joao"}))

	items, total, err := repo.List(ctx, domain.ContactFilter{Search: "maria"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Maria Souza", items[0].Name)

	_, total, err = repo.List(ctx, domain.ContactFilter{Search: "000000002"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestQueueRepository_MembersKeepJoinOrder(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	queues := repository.NewQueueGormRepository(db)
	users := repository.NewUserGormRepository(db)

	q := &domain.Queue{Name: "Geral", IsActive: true}
	require.NoError(t, queues.Create(ctx, q))
	assert.Equal(t, domain.DefaultMaxConversations, q.MaxConversations)

	var ids []string
	for _, name := range []string{"Zeca", "Ana", "Bruno"} {
		u := &domain.User{Name: name, Email: name + "@crm.local", Role: domain.RoleAgent, IsActive: true}
		require.NoError(t, users.Create(ctx, u))
		_, err := queues.AddUser(ctx, q.ID, u.ID)
		require.NoError(t, err)
		ids = append(ids, u.ID)
		time.Sleep(2 * time.Millisecond)
	}

	_, err := queues.AddUser(ctx, q.ID, ids[0])
	assert.ErrorIs(t, err, domain.ErrDuplicateMembership)

	members, err := queues.Members(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	for i, m := range members {
		assert.Equal(t, ids[i], m.ID)
	}

	require.NoError(t, queues.RemoveUser(ctx, q.ID, ids[1]))
	members, err = queues.Members(ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestQueueRepository_UpdateWritesFalse(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewQueueGormRepository(setupTestDB(t))

	q := &domain.Queue{Name: "Suporte", IsActive: true, AutoAssign: true}
	require.NoError(t, repo.Create(ctx, q))

	q.IsActive = false
	q.AutoAssign = false
	require.NoError(t, repo.Update(ctx, q))

	stored, err := repo.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.False(t, stored.AutoAssign)

	_, err = repo.FirstActive(ctx)
	assert.ErrorIs(t, err, domain.ErrQueueNotFound)
}

func TestConversationRepository_ListWithUnread(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	contacts := repository.NewContactGormRepository(db)
	convs := repository.NewConversationGormRepository(db)
	msgs := repository.NewMessageGormRepository(db)

	contact := &domain.Contact{Phone: "5511988887777", Name: "Carla"}
	require.NoError(t, contacts.Create(ctx, contact))

	conv := &domain.Conversation{ContactID: contact.ID}
	require.NoError(t, convs.Create(ctx, conv))
	assert.Equal(t, domain.StatusWaiting, conv.Status)
	assert.Equal(t, domain.PriorityMedium, conv.Priority)

	for _, body := range []string{"oi", "tudo bem?"} {
		require.NoError(t, msgs.Create(ctx, &domain.Message{
			ConversationID: conv.ID,
			Content:        body,
			Direction:      domain.Inbound,
			Status:         domain.MessageDelivered,
		}))
		time.Sleep(time.Millisecond)
	}

	items, total, err := convs.List(ctx, domain.ConversationFilter{Status: domain.StatusWaiting})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.EqualValues(t, 2, items[0].UnreadCount)
	require.NotNil(t, items[0].LastMessage)
	assert.Equal(t, "tudo bem?", items[0].LastMessage.Content)
	require.NotNil(t, items[0].Contact)
	assert.Equal(t, "Carla", items[0].Contact.Name)

	changed, err := msgs.MarkInboundRead(ctx, conv.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	changed, err = msgs.MarkInboundRead(ctx, conv.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 0, changed)
}

func TestConversationRepository_FindOpenAndStats(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	contacts := repository.NewContactGormRepository(db)
	convs := repository.NewConversationGormRepository(db)

	contact := &domain.Contact{Phone: "5511911112222", Name: "Davi"}
	require.NoError(t, contacts.Create(ctx, contact))

	closedAt := time.Now().UTC()
	require.NoError(t, convs.Create(ctx, &domain.Conversation{
		ContactID: contact.ID,
		Status:    domain.StatusResolved,
		ClosedAt:  &closedAt,
	}))

	_, err := convs.FindOpenByContact(ctx, contact.ID)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	open := &domain.Conversation{ContactID: contact.ID}
	require.NoError(t, convs.Create(ctx, open))

	found, err := convs.FindOpenByContact(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, found.ID)

	stats, err := convs.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Waiting)
	assert.EqualValues(t, 1, stats.Resolved)
	assert.EqualValues(t, 2, stats.Total)
}

func TestConversationRepository_StaleWriteKeepsLastMessageAt(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	contacts := repository.NewContactGormRepository(db)
	convs := repository.NewConversationGormRepository(db)

	contact := &domain.Contact{Phone: "5511922223333", Name: "Elisa"}
	require.NoError(t, contacts.Create(ctx, contact))

	now := time.Now().UTC()
	conv := &domain.Conversation{ContactID: contact.ID, LastMessageAt: now.Add(-48 * time.Hour)}
	require.NoError(t, convs.Create(ctx, conv))

	stale, err := convs.GetByID(ctx, conv.ID)
	require.NoError(t, err)

	touched, err := convs.TouchOpen(ctx, conv.ID, now)
	require.NoError(t, err)
	assert.True(t, touched)

	stale.Priority = domain.PriorityHigh
	require.NoError(t, convs.Update(ctx, stale))

	got, err := convs.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.WithinDuration(t, now, got.LastMessageAt, time.Second)

	closed, err := convs.CloseIfInactive(ctx, conv.ID, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	assert.False(t, closed)

	got, err = convs.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, got.Status)
	assert.Nil(t, got.ClosedAt)
}

func TestConversationRepository_CloseIfInactiveAndTouchOpen(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	contacts := repository.NewContactGormRepository(db)
	convs := repository.NewConversationGormRepository(db)

	contact := &domain.Contact{Phone: "5511933334444", Name: "Fabio"}
	require.NoError(t, contacts.Create(ctx, contact))

	now := time.Now().UTC()
	conv := &domain.Conversation{ContactID: contact.ID, LastMessageAt: now.Add(-48 * time.Hour)}
	require.NoError(t, convs.Create(ctx, conv))

	closed, err := convs.CloseIfInactive(ctx, conv.ID, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	assert.True(t, closed)

	got, err := convs.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, got.Status)
	require.NotNil(t, got.ClosedAt)

	touched, err := convs.TouchOpen(ctx, conv.ID, now)
	require.NoError(t, err)
	assert.False(t, touched)

	closed, err = convs.CloseIfInactive(ctx, conv.ID, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestConnectionRepository_SingleActiveAndSealedToken(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	cipher, err := crypto.NewCipher("secret")
	require.NoError(t, err)
	repo := repository.NewConnectionGormRepository(db, cipher)

	first := &domain.Connection{Name: "A", PhoneNumberID: "111", AccessToken: "tok-a", VerifyToken: "v", IsActive: true}
	require.NoError(t, repo.Create(ctx, first))
	second := &domain.Connection{Name: "B", PhoneNumberID: "222", AccessToken: "tok-b", VerifyToken: "v", IsActive: true}
	require.NoError(t, repo.Create(ctx, second))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, "tok-b", active.AccessToken)

	reloaded, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)

	var raw string
	require.NoError(t, db.Table("whatsapp_connections").Select("access_token").Where("id = ?", second.ID).Scan(&raw).Error)
	assert.NotEqual(t, "tok-b", raw)
}

func TestMemorySeenStore(t *testing.T) {
	store := repository.NewMemorySeenStore(time.Minute)

	first, err := store.MarkSeen(context.Background(), "wamid.1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkSeen(context.Background(), "wamid.1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, store.Forget(context.Background(), "wamid.1"))
	retry, err := store.MarkSeen(context.Background(), "wamid.1")
	require.NoError(t, err)
	assert.True(t, retry)
}

func TestMemoryTypingStore(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryTypingStore()

	require.NoError(t, store.Update(ctx, "c1", "u1", true))
	require.NoError(t, store.Update(ctx, "c1", "u2", true))
	require.NoError(t, store.Update(ctx, "c2", "u3", true))

	states, err := store.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "u1", states[0].UserID)

	require.NoError(t, store.Update(ctx, "c1", "u1", false))
	states, err = store.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "u2", states[0].UserID)
}
