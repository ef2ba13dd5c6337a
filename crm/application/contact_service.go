package application

import (
	"context"
	"strings"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/AzielCF/az-crm/validations"
	"github.com/sirupsen/logrus"
)

// ContactService expone la agenda de contactos a los agentes
type ContactService struct {
	contacts      domain.ContactRepository
	conversations domain.ConversationRepository
}

func NewContactService(contacts domain.ContactRepository, conversations domain.ConversationRepository) *ContactService {
	return &ContactService{contacts: contacts, conversations: conversations}
}

// ContactDetail es un contacto con su historial de conversaciones
type ContactDetail struct {
	*domain.Contact
	Conversations []domain.Conversation `json:"conversations"`
}

func (s *ContactService) List(ctx context.Context, search string, page, limit int) ([]domain.ContactSummary, utils.Pagination, error) {
	items, total, err := s.contacts.List(ctx, domain.ContactFilter{
		Search: strings.TrimSpace(search),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, utils.Pagination{}, err
	}
	return items, utils.NewPagination(page, limit, total), nil
}

func (s *ContactService) Get(ctx context.Context, id string) (*ContactDetail, error) {
	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	convs, err := s.conversations.ListByContact(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ContactDetail{Contact: contact, Conversations: convs}, nil
}

// Update cambia solo los campos presentes; el teléfono no es editable
func (s *ContactService) Update(ctx context.Context, id string, request domain.UpdateContactRequest) (*domain.Contact, error) {
	if err := validations.ValidateUpdateContact(ctx, request); err != nil {
		return nil, err
	}

	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Name != nil {
		contact.Name = strings.TrimSpace(*request.Name)
	}
	if request.Email != nil {
		contact.Email = strings.TrimSpace(*request.Email)
	}
	if request.Notes != nil {
		contact.Notes = *request.Notes
	}
	if request.Tags != nil {
		contact.Tags = uniqueTags(*request.Tags)
	}

	if err := s.contacts.Update(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *ContactService) SetBlocked(ctx context.Context, id string, blocked bool) (*domain.Contact, error) {
	if err := s.contacts.SetBlocked(ctx, id, blocked); err != nil {
		return nil, err
	}
	logrus.Infof("[CONTACT] %s blocked=%t", id, blocked)
	return s.contacts.GetByID(ctx, id)
}

// uniqueTags conserva el primer orden de aparición
func uniqueTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if _, ok := seen[t]; ok || t == "" {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
