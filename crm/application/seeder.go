package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/security"
	"github.com/sirupsen/logrus"
)

type seedUser struct {
	name, email, phone string
	role               domain.UserRole
	queues             []string
}

type seedQueue struct {
	name, description, color string
	priority                 int
}

var (
	seedQueues = []seedQueue{
		{"Suporte Técnico", "Fila para atendimento de suporte técnico", "#EF4444", 1},
		{"Vendas", "Fila para atendimento de vendas", "#10B981", 2},
		{"Financeiro", "Fila para questões financeiras", "#F59E0B", 3},
		{"Atendimento Geral", "Fila para atendimento geral", "#3B82F6", 4},
	}

	seedUsers = []seedUser{
		{"Administrador", "admin@whatsapp-erp.com", "5511999999999", domain.RoleAdmin, nil},
		{"Supervisor Geral", "supervisor@whatsapp-erp.com", "5511888888888", domain.RoleSupervisor,
			[]string{"Suporte Técnico", "Vendas", "Financeiro", "Atendimento Geral"}},
		{"Agente João", "joao@whatsapp-erp.com", "5511777777777", domain.RoleAgent, []string{"Suporte Técnico", "Atendimento Geral"}},
		{"Agente Maria", "maria@whatsapp-erp.com", "5511666666666", domain.RoleAgent, []string{"Vendas", "Atendimento Geral"}},
		{"Agente Pedro", "pedro@whatsapp-erp.com", "5511555555555", domain.RoleAgent, []string{"Financeiro", "Atendimento Geral"}},
	}

	seedContacts = []domain.Contact{
		{Name: "Cliente João Silva", Phone: "5511987654321", Email: "joao.silva@email.com", Tags: []string{"cliente", "vip"}},
		{Name: "Cliente Maria Santos", Phone: "5511876543210", Email: "maria.santos@email.com", Tags: []string{"cliente", "novo"}},
		{Name: "Prospect Pedro Lima", Phone: "5511765432109", Email: "pedro.lima@email.com", Tags: []string{"prospect", "interessado"}},
		{Name: "Cliente Ana Costa", Phone: "5511654321098", Email: "ana.costa@email.com", Tags: []string{"cliente", "recorrente"}},
		{Name: "Suporte Carlos Oliveira", Phone: "5511543210987", Email: "carlos.oliveira@email.com", Tags: []string{"suporte", "urgente"}},
	}
)

// SeedResult cuenta lo creado en esta ejecución
type SeedResult struct {
	Queues   int
	Users    int
	Members  int
	Contacts int
}

// Seeder carga colas, agentes y contactos de demostración. Es idempotente:
// lo que ya existe se conserva.
type Seeder struct {
	contacts domain.ContactRepository
	queues   domain.QueueRepository
	users    domain.UserRepository
}

func NewSeeder(contacts domain.ContactRepository, queues domain.QueueRepository, users domain.UserRepository) *Seeder {
	return &Seeder{contacts: contacts, queues: queues, users: users}
}

// Run crea los datos; password se asigna a todos los usuarios nuevos
func (s *Seeder) Run(ctx context.Context, password string) (SeedResult, error) {
	var res SeedResult

	hash, err := security.HashPassword(password)
	if err != nil {
		return res, err
	}

	queueIDs, err := s.seedQueues(ctx, &res)
	if err != nil {
		return res, err
	}

	for _, su := range seedUsers {
		user := &domain.User{Name: su.name, Email: su.email, Phone: su.phone, Role: su.role, IsActive: true, PasswordHash: hash}
		err := s.users.Create(ctx, user)
		switch {
		case err == nil:
			res.Users++
		case errors.Is(err, domain.ErrDuplicateUser):
			if user, err = s.users.GetByEmail(ctx, su.email); err != nil {
				return res, err
			}
		default:
			return res, fmt.Errorf("seed user %s: %w", su.email, err)
		}

		for _, name := range su.queues {
			_, err := s.queues.AddUser(ctx, queueIDs[name], user.ID)
			switch {
			case err == nil:
				res.Members++
			case !errors.Is(err, domain.ErrDuplicateMembership):
				return res, fmt.Errorf("seed membership %s/%s: %w", name, su.email, err)
			}
		}
	}

	for i := range seedContacts {
		contact := seedContacts[i]
		err := s.contacts.Create(ctx, &contact)
		switch {
		case err == nil:
			res.Contacts++
		case !errors.Is(err, domain.ErrDuplicateContact):
			return res, fmt.Errorf("seed contact %s: %w", contact.Phone, err)
		}
	}

	logrus.Infof("[SEED] Created %d queues, %d users, %d memberships, %d contacts", res.Queues, res.Users, res.Members, res.Contacts)
	return res, nil
}

func (s *Seeder) seedQueues(ctx context.Context, res *SeedResult) (map[string]string, error) {
	existing, err := s.queues.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]string, len(existing))
	for _, q := range existing {
		ids[q.Name] = q.ID
	}

	for _, sq := range seedQueues {
		if _, ok := ids[sq.name]; ok {
			continue
		}
		q := &domain.Queue{
			Name:        sq.name,
			Description: sq.description,
			Color:       sq.color,
			Priority:    sq.priority,
			IsActive:    true,
		}
		if err := s.queues.Create(ctx, q); err != nil {
			return nil, fmt.Errorf("seed queue %s: %w", sq.name, err)
		}
		ids[sq.name] = q.ID
		res.Queues++
	}
	return ids, nil
}
