package domain

import "time"

// UserRole define el nivel de acceso de un agente
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleSupervisor UserRole = "SUPERVISOR"
	RoleAgent      UserRole = "AGENT"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleAgent:
		return true
	}
	return false
}

// User es un agente o supervisor del CRM
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Role         UserRole  `json:"role"`
	IsActive     bool      `json:"isActive"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserSummary incluye colas y conversaciones en atención
type UserSummary struct {
	User
	Queues    []Queue `json:"queues"`
	Attending int64   `json:"attending"`
}

// UserStats son las métricas de un agente
type UserStats struct {
	Attending     int64 `json:"attending"`
	Resolved      int64 `json:"resolved"`
	TotalMessages int64 `json:"totalMessages"`
}
