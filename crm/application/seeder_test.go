package application_test

import (
	"context"
	"testing"

	"github.com/AzielCF/az-crm/crm/application"
	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeder_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeder := application.NewSeeder(h.contacts, h.queues, h.users)

	first, err := seeder.Run(ctx, "admin123")
	require.NoError(t, err)
	assert.Equal(t, application.SeedResult{Queues: 4, Users: 5, Members: 10, Contacts: 5}, first)

	second, err := seeder.Run(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, application.SeedResult{}, second)

	admin, err := h.users.GetByEmail(ctx, "admin@whatsapp-erp.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.True(t, security.CheckPasswordHash("admin123", admin.PasswordHash))

	queues, err := h.queueSvc.List(ctx)
	require.NoError(t, err)
	require.Len(t, queues, 4)
	for _, q := range queues {
		if q.Name == "Atendimento Geral" {
			assert.Len(t, q.Users, 4)
		}
	}
}
