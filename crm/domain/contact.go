package domain

import (
	"fmt"
	"time"
)

// Contact representa al cliente final de WhatsApp atendido por el negocio
type Contact struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"` // solo dígitos
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Tags      []string  `json:"tags"`
	IsBlocked bool      `json:"isBlocked"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultContactName es el nombre asignado cuando WhatsApp no envía perfil
func DefaultContactName(phone string) string {
	return fmt.Sprintf("Contato %s", phone)
}

// HasTag verifica si el contacto tiene un tag específico
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ContactFilter define los criterios de búsqueda de contactos
type ContactFilter struct {
	Search string
	Limit  int
	Offset int
}

// ContactSummary agrega la última conversación y el total de conversaciones
type ContactSummary struct {
	Contact
	LastConversation   *Conversation `json:"lastConversation,omitempty"`
	ConversationsCount int64         `json:"conversationsCount"`
}
