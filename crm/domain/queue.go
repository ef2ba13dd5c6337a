package domain

import "time"

// DefaultMaxConversations es el tope por agente cuando la cola no define uno
const DefaultMaxConversations = 5

// Queue es un bucket de enrutamiento de conversaciones
type Queue struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Color            string    `json:"color"`
	Priority         int       `json:"priority"`
	IsActive         bool      `json:"isActive"`
	AutoAssign       bool      `json:"autoAssign"`
	MaxConversations int       `json:"maxConversations"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// QueueUser es la membresía de un agente en una cola
type QueueUser struct {
	QueueID   string    `json:"queueId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// QueueSummary incluye miembros y conversaciones abiertas
type QueueSummary struct {
	Queue
	Users             []User `json:"users"`
	OpenConversations int64  `json:"openConversations"`
}
